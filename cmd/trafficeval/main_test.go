package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSign(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestInspectCommand(t *testing.T) {
	root := t.TempDir()
	writeSign(t, filepath.Join(root, "0", "a.png"))
	writeSign(t, filepath.Join(root, "10", "a.png"))
	writeSign(t, filepath.Join(root, "10", "b.png"))
	writeSign(t, filepath.Join(root, "2", "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2", "broken.png"), []byte("nope"), 0o644))

	cmd := newInspectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--corpus", root, "--workers", "2"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "failed images: 1")
	assert.Contains(t, text, "broken.png")
	// Sorted directory names define the canonical index.
	assert.Regexp(t, `0\s+0\s+1`, text)
	assert.Regexp(t, `1\s+10\s+2`, text)
	assert.Regexp(t, `2\s+2\s+1`, text)
	assert.Regexp(t, `total\s+4`, text)
}

func TestInspectCommand_MissingCorpus(t *testing.T) {
	cmd := newInspectCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--corpus", filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, cmd.Execute())
}
