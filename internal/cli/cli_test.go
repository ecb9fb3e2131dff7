package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceID = "6f1c2a4e-8d3b-4c5a-9e7f-0a1b2c3d4e5f"

type workspace struct {
	dir       string
	keys      string
	originals string
	manifest  string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:       dir,
		keys:      filepath.Join(dir, "keys"),
		originals: filepath.Join(dir, "originals"),
		manifest:  filepath.Join(dir, "sources.yaml"),
	}

	require.NoError(t, os.MkdirAll(ws.originals, 0755))
	f, err := os.Create(filepath.Join(ws.originals, "hero.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 1600, 900))))
	require.NoError(t, f.Close())

	manifest := "sources:\n  - id: " + sourceID + "\n    path: hero.png\n"
	require.NoError(t, os.WriteFile(ws.manifest, []byte(manifest), 0644))
	return ws
}

func (ws workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	global := []string{
		"--scheme", "age",
		"--public-key", filepath.Join(ws.keys, "public.age"),
		"--private-key", filepath.Join(ws.keys, "private.age"),
		"--sources", ws.manifest,
		"--originals", ws.originals,
		"--prefix", "derivatives",
	}

	buf := new(bytes.Buffer)
	cmd := NewRootCmd()
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append(args, global...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestKeygenURLDecode(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "keygen", "--out", ws.keys)
	require.NoError(t, err)
	assert.Contains(t, out, "public.age")
	assert.FileExists(t, filepath.Join(ws.keys, "public.age"))

	info, err := os.Stat(filepath.Join(ws.keys, "private.age"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err = ws.run(t, "url", "--source", sourceID, "--width", "700")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(path, "/derivatives/"), path)
	assert.True(t, strings.HasSuffix(path, ".png"), path)

	out, err = ws.run(t, "decode", path, "--json")
	require.NoError(t, err)

	var decoded struct {
		Source    string `json:"source"`
		Fit       string `json:"fit"`
		Width     *int   `json:"width"`
		Height    *int   `json:"height"`
		Extension string `json:"extension"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, sourceID, decoded.Source)
	assert.Equal(t, "clip", decoded.Fit)
	require.NotNil(t, decoded.Width)
	require.NotNil(t, decoded.Height)
	assert.Equal(t, 500, *decoded.Width)
	assert.Equal(t, 281, *decoded.Height)
	assert.Empty(t, decoded.Extension)

	token := strings.TrimSuffix(strings.TrimPrefix(path, "/derivatives/"), ".png")
	out, err = ws.run(t, "decode", token)
	require.NoError(t, err)
	assert.Contains(t, out, "width:     500")
	assert.Contains(t, out, "extension: -")
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "keygen", "--out", ws.keys)
	require.NoError(t, err)

	_, err = ws.run(t, "keygen", "--out", ws.keys)
	assert.ErrorContains(t, err, "already exists")

	_, err = ws.run(t, "keygen", "--out", ws.keys, "--force")
	assert.NoError(t, err)
}

func TestURLErrors(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "url", "--source", sourceID)
	assert.Error(t, err, "missing keys")

	_, err = ws.run(t, "keygen", "--out", ws.keys)
	require.NoError(t, err)

	_, err = ws.run(t, "url", "--source", "0b7d9a52-1c3e-4f6a-8b9c-d0e1f2a3b4c5")
	assert.ErrorContains(t, err, "not found")

	_, err = ws.run(t, "url", "--source", sourceID, "--fit", "crop")
	assert.ErrorContains(t, err, "unsupported fit")

	_, err = ws.run(t, "decode", "garbage")
	assert.ErrorContains(t, err, "decryption failed")
}
