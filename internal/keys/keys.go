// Package keys supplies the raw key material the token codec is built from.
package keys

import (
	"errors"
	"fmt"
	"os"
)

// Provider hands out raw public and private key bytes.
type Provider interface {
	PublicKey() ([]byte, error)
	PrivateKey() ([]byte, error)
}

// UnavailableError reports key material that could not be loaded or parsed.
// It is a startup condition, not a per-request one.
type UnavailableError struct {
	Kind string // "public" or "private"
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s key unavailable: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s key unavailable at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ErrNotConfigured is wrapped when no path was configured for a key.
var ErrNotConfigured = errors.New("no key path configured")

// FileProvider reads keys from configured paths on every call.
type FileProvider struct {
	PublicPath  string
	PrivatePath string
}

// NewFileProvider creates a provider for the given paths. Either may be empty.
func NewFileProvider(publicPath, privatePath string) *FileProvider {
	return &FileProvider{
		PublicPath:  publicPath,
		PrivatePath: privatePath,
	}
}

func (p *FileProvider) PublicKey() ([]byte, error) {
	return readKey("public", p.PublicPath)
}

func (p *FileProvider) PrivateKey() ([]byte, error) {
	return readKey("private", p.PrivatePath)
}

func readKey(kind, path string) ([]byte, error) {
	if path == "" {
		return nil, &UnavailableError{Kind: kind, Err: ErrNotConfigured}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UnavailableError{Kind: kind, Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, &UnavailableError{Kind: kind, Path: path, Err: errors.New("empty key file")}
	}
	return data, nil
}

// Static is a Provider over in-memory key bytes.
type Static struct {
	Public  []byte
	Private []byte
}

func (s Static) PublicKey() ([]byte, error) {
	if len(s.Public) == 0 {
		return nil, &UnavailableError{Kind: "public", Err: ErrNotConfigured}
	}
	return s.Public, nil
}

func (s Static) PrivateKey() ([]byte, error) {
	if len(s.Private) == 0 {
		return nil, &UnavailableError{Kind: "private", Err: ErrNotConfigured}
	}
	return s.Private, nil
}
