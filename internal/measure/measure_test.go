package measure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeasure_PlainBody(t *testing.T) {
	m := New()

	r := m.Measure(context.Background(), "hello\nworld!!")
	require.Equal(t, 7, r.Width)
	require.Equal(t, 2, r.Height)
}

func TestMeasure_EmptyBody(t *testing.T) {
	m := New()

	r := m.Measure(context.Background(), "")
	require.Equal(t, Result{}, r)
}

func TestMeasure_AnsiSequencesHaveNoWidth(t *testing.T) {
	m := New()

	styled := "\x1b[1;31mred\x1b[0m"
	r := m.Measure(context.Background(), styled)
	require.Equal(t, 3, r.Width)
	require.Equal(t, 1, r.Height)
}

func TestMeasure_WideRunes(t *testing.T) {
	m := New()

	r := m.Measure(context.Background(), "日本語")
	require.Equal(t, 6, r.Width)
}

func TestMeasure_CachedResultStable(t *testing.T) {
	m := New()
	ctx := context.Background()

	first := m.Measure(ctx, "body")
	second := m.Measure(ctx, "body")
	require.Equal(t, first, second)

	m.Flush(ctx)
	require.Equal(t, first, m.Measure(ctx, "body"))
}

func TestPlainWidth(t *testing.T) {
	require.Equal(t, 5, PlainWidth("hello"))
	require.Equal(t, 4, PlainWidth("日本"))
}

func TestWrap(t *testing.T) {
	require.Equal(t, "short", Wrap("short", 10))
	require.Equal(t, "aaa\nbbb", Wrap("aaa bbb", 4))
	require.Equal(t, "unbounded", Wrap("unbounded", 0))
}
