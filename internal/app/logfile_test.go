package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFile_TrimsToNewestBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	f, err := OpenLogFile(path, LogLimit{MaxBytes: 32, KeepBytes: 16})
	require.NoError(t, err)

	_, err = f.Write(bytes.Repeat([]byte("a"), 20))
	require.NoError(t, err)
	_, err = f.Write(bytes.Repeat([]byte("b"), 20))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("b"), 16), data)
}

func TestOpenLogFile_InvalidLimit(t *testing.T) {
	_, err := OpenLogFile(filepath.Join(t.TempDir(), "x.log"), LogLimit{MaxBytes: 10, KeepBytes: 20})
	require.Error(t, err)
}
