// Package codec turns transform requests into opaque, URL-safe tokens sealed
// with a public key, and opens them again with the matching private key.
//
// The plaintext is a canonical query string (keys sorted), so two logically
// identical requests always seal the same bytes. Ciphertexts are randomised
// by the underlying scheme.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"image-derivatives/internal/keys"
)

const (
	keySource    = "source"
	keyFit       = "fit"
	keyWidth     = "w"
	keyHeight    = "h"
	keyExtension = "ext"
)

var (
	toPathSafe   = strings.NewReplacer("/", "_", "+", "-")
	fromPathSafe = strings.NewReplacer("_", "/", "-", "+")
	tokenBase64  = base64.StdEncoding.Strict()
)

// Codec seals and opens tokens. It holds only read-only key material and is
// safe for concurrent use.
type Codec struct {
	scheme Scheme
	sealer Sealer
	opener Opener
}

// New builds a codec from raw key bytes. Either key may be empty, producing
// an encode-only or decode-only codec; an unparsable key is an error.
func New(scheme Scheme, public, private []byte) (*Codec, error) {
	scheme, err := ParseScheme(string(scheme))
	if err != nil {
		return nil, err
	}
	c := &Codec{scheme: scheme}

	if len(public) > 0 {
		sealer, err := newSealer(scheme, public)
		if err != nil {
			return nil, &keys.UnavailableError{Kind: "public", Err: err}
		}
		c.sealer = sealer
	}
	if len(private) > 0 {
		opener, err := newOpener(scheme, private)
		if err != nil {
			return nil, &keys.UnavailableError{Kind: "private", Err: err}
		}
		c.opener = opener
	}
	return c, nil
}

// FromProvider loads both keys from p. Any key failure is returned as is, so
// callers can treat it as fatal at startup.
func FromProvider(scheme Scheme, p keys.Provider) (*Codec, error) {
	public, err := p.PublicKey()
	if err != nil {
		return nil, err
	}
	private, err := p.PrivateKey()
	if err != nil {
		return nil, err
	}
	return New(scheme, public, private)
}

// EncoderFromProvider loads only the public key.
func EncoderFromProvider(scheme Scheme, p keys.Provider) (*Codec, error) {
	public, err := p.PublicKey()
	if err != nil {
		return nil, err
	}
	return New(scheme, public, nil)
}

// DecoderFromProvider loads only the private key.
func DecoderFromProvider(scheme Scheme, p keys.Provider) (*Codec, error) {
	private, err := p.PrivateKey()
	if err != nil {
		return nil, err
	}
	return New(scheme, nil, private)
}

// Scheme returns the sealing scheme in use.
func (c *Codec) Scheme() Scheme {
	return c.scheme
}

// Encode seals req into a token. The extension is only carried when it
// differs from originalExtension.
func (c *Codec) Encode(req TransformRequest, originalExtension string) (string, error) {
	if !req.Fit.Valid() {
		return "", &UnsupportedFitError{Fit: req.Fit}
	}
	if req.SourceID == "" {
		return "", ErrMissingSource
	}
	if err := checkDimension(keyWidth, req.Width); err != nil {
		return "", err
	}
	if err := checkDimension(keyHeight, req.Height); err != nil {
		return "", err
	}
	if c.sealer == nil {
		return "", &keys.UnavailableError{Kind: "public", Err: keys.ErrNotConfigured}
	}

	values := url.Values{}
	values.Set(keySource, req.SourceID)
	values.Set(keyFit, string(req.Fit))
	if ext := NormalizeExtension(req.Extension); ext != "" && ext != NormalizeExtension(originalExtension) {
		values.Set(keyExtension, ext)
	}
	if req.Width != nil {
		values.Set(keyWidth, strconv.Itoa(*req.Width))
	}
	if req.Height != nil {
		values.Set(keyHeight, strconv.Itoa(*req.Height))
	}

	ciphertext, err := c.sealer.Seal([]byte(values.Encode()))
	if err != nil {
		return "", err
	}
	return toPathSafe.Replace(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

// Decode opens a token produced by Encode.
func (c *Codec) Decode(token string) (TransformRequest, error) {
	if c.opener == nil {
		return TransformRequest{}, &DecryptionError{Err: &keys.UnavailableError{Kind: "private", Err: keys.ErrNotConfigured}}
	}
	if token == "" {
		return TransformRequest{}, &DecryptionError{Err: errors.New("empty token")}
	}

	ciphertext, err := tokenBase64.DecodeString(fromPathSafe.Replace(token))
	if err != nil {
		return TransformRequest{}, &DecryptionError{Err: err}
	}
	plaintext, err := c.opener.Open(ciphertext)
	if err != nil {
		return TransformRequest{}, &DecryptionError{Err: err}
	}

	return parsePayload(string(plaintext))
}

func parsePayload(payload string) (TransformRequest, error) {
	values, err := url.ParseQuery(payload)
	if err != nil {
		return TransformRequest{}, &MalformedTokenError{Reason: "payload is not a query string", Err: err}
	}

	req := TransformRequest{
		SourceID:  values.Get(keySource),
		Fit:       Fit(values.Get(keyFit)),
		Extension: values.Get(keyExtension),
	}
	if req.SourceID == "" {
		return TransformRequest{}, &MalformedTokenError{Reason: "missing " + keySource}
	}
	if req.Fit == "" {
		return TransformRequest{}, &MalformedTokenError{Reason: "missing " + keyFit}
	}
	if !req.Fit.Valid() {
		return TransformRequest{}, &MalformedTokenError{Reason: "bad " + keyFit, Err: &UnsupportedFitError{Fit: req.Fit}}
	}

	if req.Width, err = parseDimension(values, keyWidth); err != nil {
		return TransformRequest{}, err
	}
	if req.Height, err = parseDimension(values, keyHeight); err != nil {
		return TransformRequest{}, err
	}
	return req, nil
}

func parseDimension(values url.Values, key string) (*int, error) {
	if !values.Has(key) {
		return nil, nil
	}
	v, err := strconv.Atoi(values.Get(key))
	if err != nil {
		return nil, &MalformedTokenError{Reason: "bad " + key, Err: err}
	}
	if v <= 0 {
		return nil, &MalformedTokenError{Reason: "non-positive " + key}
	}
	return &v, nil
}

// checkDimension applies the bound parseDimension enforces on decode.
func checkDimension(key string, v *int) error {
	if v != nil && *v <= 0 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidDimension, key, *v)
	}
	return nil
}
