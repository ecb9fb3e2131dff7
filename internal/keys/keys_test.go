package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(pub, []byte("public bytes"), 0644))

	p := NewFileProvider(pub, "")

	data, err := p.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("public bytes"), data)

	_, err = p.PrivateKey()
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "private", unavailable.Kind)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFileProviderErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.pem")},
		{"empty file", empty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFileProvider(tc.path, "").PublicKey()
			var unavailable *UnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, tc.path, unavailable.Path)
			assert.Contains(t, err.Error(), "public key unavailable at")
		})
	}

	_, err := NewFileProvider(filepath.Join(dir, "nope.pem"), "").PublicKey()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStatic(t *testing.T) {
	s := Static{Public: []byte("pub")}

	data, err := s.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("pub"), data)

	_, err = s.PrivateKey()
	assert.ErrorIs(t, err, ErrNotConfigured)
}
