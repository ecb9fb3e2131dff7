package codec

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// Scheme selects the asymmetric construction used to seal tokens.
type Scheme string

const (
	// SchemeRSA is RSA-OAEP with SHA-256 over PEM encoded keys.
	SchemeRSA Scheme = "rsa"
	// SchemeAge is age with X25519 recipients and identities.
	SchemeAge Scheme = "age"
)

// ParseScheme accepts "rsa" or "age"; empty means rsa.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "", SchemeRSA:
		return SchemeRSA, nil
	case SchemeAge:
		return SchemeAge, nil
	default:
		return "", fmt.Errorf("unknown key scheme %q", s)
	}
}

// Sealer encrypts token plaintext with a public key.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// Opener decrypts token ciphertext with a private key.
type Opener interface {
	Open(ciphertext []byte) ([]byte, error)
}

func newSealer(scheme Scheme, public []byte) (Sealer, error) {
	switch scheme {
	case SchemeAge:
		return newAgeSealer(public)
	case SchemeRSA:
		return newRSASealer(public)
	default:
		return nil, fmt.Errorf("unknown key scheme %q", scheme)
	}
}

func newOpener(scheme Scheme, private []byte) (Opener, error) {
	switch scheme {
	case SchemeAge:
		return newAgeOpener(private)
	case SchemeRSA:
		return newRSAOpener(private)
	default:
		return nil, fmt.Errorf("unknown key scheme %q", scheme)
	}
}

type rsaSealer struct {
	key *rsa.PublicKey
}

func newRSASealer(data []byte) (*rsaSealer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKCS#1 public key: %w", err)
		}
		return &rsaSealer{key: key}, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKIX public key: %w", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", parsed)
		}
		return &rsaSealer{key: key}, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q for public key", block.Type)
	}
}

func (s *rsaSealer) Seal(plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, s.key, plaintext, nil)
}

type rsaOpener struct {
	key *rsa.PrivateKey
}

func newRSAOpener(data []byte) (*rsaOpener, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKCS#1 private key: %w", err)
		}
		return &rsaOpener{key: key}, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKCS#8 private key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, not RSA", parsed)
		}
		return &rsaOpener{key: key}, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q for private key", block.Type)
	}
}

func (o *rsaOpener) Open(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), nil, o.key, ciphertext, nil)
}

type ageSealer struct {
	recipients []age.Recipient
}

func newAgeSealer(data []byte) (*ageSealer, error) {
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing age recipients: %w", err)
	}
	return &ageSealer{recipients: recipients}, nil
}

func (s *ageSealer) Seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing age plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

type ageOpener struct {
	identities []age.Identity
}

func newAgeOpener(data []byte) (*ageOpener, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing age identities: %w", err)
	}
	return &ageOpener{identities: identities}, nil
}

func (o *ageOpener) Open(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), o.identities...)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// GenerateKeyPair creates a new key pair for scheme and returns the public
// and private halves in the on-disk format New expects.
func GenerateKeyPair(scheme Scheme) (public, private []byte, err error) {
	switch scheme {
	case SchemeAge:
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, nil, fmt.Errorf("generating age identity: %w", err)
		}
		return []byte(identity.Recipient().String() + "\n"), []byte(identity.String() + "\n"), nil

	case SchemeRSA:
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, fmt.Errorf("generating RSA key: %w", err)
		}
		pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling public key: %w", err)
		}
		pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling private key: %w", err)
		}
		public = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix})
		private = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
		return public, private, nil

	default:
		return nil, nil, fmt.Errorf("unknown key scheme %q", scheme)
	}
}
