package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(true)
	SetMinLevel(LevelDebug)

	Info(CatOverlay, "instance created", "id", "abc", "side", "below")

	line := buf.String()
	require.Contains(t, line, "[INFO]")
	require.Contains(t, line, "[overlay]")
	require.Contains(t, line, "instance created")
	require.Contains(t, line, "id=abc")
	require.Contains(t, line, "side=below")
	require.True(t, strings.HasSuffix(line, "\n"))
}

func TestWrite_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(true)
	SetMinLevel(LevelWarn)

	Debug(CatDrag, "suppressed")
	Warn(CatDrag, "kept")

	require.NotContains(t, buf.String(), "suppressed")
	require.Contains(t, buf.String(), "kept")
}

func TestWrite_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(true)
	SetMinLevel(LevelDebug)

	Error(CatRegistry, "odd", "orphan")

	require.Contains(t, buf.String(), "orphan=<missing>")
}

func TestErrorErr_NilError(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(true)
	SetMinLevel(LevelDebug)

	ErrorErr(CatText, "boom", nil)

	require.Contains(t, buf.String(), "error=<nil>")
}

func TestSetEnabled_Off(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	SetEnabled(false)

	Info(CatUI, "dropped")
	require.Empty(t, buf.String())
}
