package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCappedFile_KeepsNewestBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	w, err := openCappedFile(path, 20, 10)
	require.NoError(t, err)

	_, err = w.Write([]byte(strings.Repeat("a", 15)))
	require.NoError(t, err)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(data))
}

func TestCappedFile_RejectsKeepAboveLimit(t *testing.T) {
	_, err := openCappedFile(filepath.Join(t.TempDir(), "x.log"), 5, 10)
	require.Error(t, err)
}
