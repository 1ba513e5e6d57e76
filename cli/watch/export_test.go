package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportLines = []string{"[t] [INFO] <start>", "[t] [ERROR] a & b"}

func TestLogText(t *testing.T) {
	assert.Equal(t, "[t] [INFO] <start>\n[t] [ERROR] a & b", LogText(exportLines))
	assert.Equal(t, "", LogText(nil))
}

func TestLogFileName(t *testing.T) {
	assert.Equal(t, "deployment-17.log", LogFileName("17"))
	assert.Equal(t, "deployment-logs.log", LogFileName(""))
}

func TestWriteLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName("17"))
	require.NoError(t, WriteLogFile(path, exportLines))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, LogText(exportLines), string(b))

	err = WriteLogFile(filepath.Join(t.TempDir(), "missing", "x.log"), exportLines)
	assert.ErrorContains(t, err, "write log")
}

func TestLogHTMLEscapes(t *testing.T) {
	page := LogHTML("17", exportLines)
	assert.Contains(t, page, "<title>deployment-17-logs</title>")
	assert.Contains(t, page, "<pre>[t] [INFO] &lt;start&gt;\n[t] [ERROR] a &amp; b</pre>")
	assert.NotContains(t, page, "<start>")
}

func TestCopyLog(t *testing.T) {
	var got string
	orig := clipboardWrite
	t.Cleanup(func() { clipboardWrite = orig })

	clipboardWrite = func(s string) error {
		got = s
		return nil
	}
	require.NoError(t, CopyLog(exportLines))
	assert.Equal(t, LogText(exportLines), got)

	clipboardWrite = func(string) error { return errors.New("no clipboard utility") }
	assert.ErrorContains(t, CopyLog(exportLines), "copy log")
}
