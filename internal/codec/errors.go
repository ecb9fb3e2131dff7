package codec

import (
	"errors"
	"fmt"
)

// ErrMissingSource is returned by Encode when the request has no source id.
var ErrMissingSource = errors.New("transform request has no source id")

// ErrInvalidDimension is returned by Encode for a width or height below 1.
var ErrInvalidDimension = errors.New("transform dimensions must be positive")

// UnsupportedFitError rejects an unknown fit strategy before any token exists.
type UnsupportedFitError struct {
	Fit Fit
}

func (e *UnsupportedFitError) Error() string {
	return fmt.Sprintf("unsupported fit strategy %q", string(e.Fit))
}

// DecryptionError means the token could not be opened with the configured
// private key: corrupt, truncated, or sealed for someone else.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("token decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// MalformedTokenError means the token decrypted but its payload is not a
// usable transform request.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return "malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}

// IsInvalidToken reports whether err means the token should be treated as not
// found by the caller.
func IsInvalidToken(err error) bool {
	var de *DecryptionError
	var me *MalformedTokenError
	return errors.As(err, &de) || errors.As(err, &me)
}
