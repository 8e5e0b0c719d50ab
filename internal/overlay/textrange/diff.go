package textrange

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/acetatelabs/acetate/internal/surface"
)

// adjustMatches shifts the offsets of matches in an edited node so they
// keep pointing at the same text between debounced rescans. Matches whose
// span was itself edited are dropped; the rescan restores them if the text
// still matches.
func adjustMatches(matches []*Match, mut surface.Mutation) []*Match {
	if mut.Node == nil || mut.OldText == mut.NewText {
		return matches
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(mut.OldText, mut.NewText, false)

	out := matches[:0]
	for _, m := range matches {
		if m.Node != mut.Node {
			out = append(out, m)
			continue
		}
		start, okStart := mapOffset(diffs, m.Start)
		end, okEnd := mapOffset(diffs, m.End)
		if !okStart || !okEnd || start >= end {
			continue
		}
		m.Start, m.End = start, end
		out = append(out, m)
	}
	return out
}

// mapOffset maps a rune offset in the old text to the corresponding offset
// in the new text. Offsets that land inside a deleted run have no stable
// image and report false.
func mapOffset(diffs []diffmatchpatch.Diff, off int) (int, bool) {
	oldPos, newPos := 0, 0
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			if off < oldPos+n {
				return newPos + (off - oldPos), true
			}
			oldPos += n
			newPos += n
		case diffmatchpatch.DiffDelete:
			if off < oldPos+n {
				return 0, false
			}
			oldPos += n
		case diffmatchpatch.DiffInsert:
			newPos += n
		}
	}
	if off == oldPos {
		return newPos, true
	}
	return 0, false
}
