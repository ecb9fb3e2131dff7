package codec

import "strings"

// Fit is the resize policy carried in a token.
type Fit string

const (
	// FitClip scales to fit inside the target box keeping the aspect ratio,
	// without cropping.
	FitClip Fit = "clip"
)

// Valid reports whether f is a supported fit strategy.
func (f Fit) Valid() bool {
	switch f {
	case FitClip:
		return true
	default:
		return false
	}
}

// TransformRequest is the decoded content of a token. Nil dimensions and an
// empty Extension mean "not requested".
type TransformRequest struct {
	SourceID  string
	Fit       Fit
	Width     *int
	Height    *int
	Extension string
}

// HasSize reports whether a scale was requested.
func (r TransformRequest) HasSize() bool {
	return r.Width != nil || r.Height != nil
}

// NormalizeExtension lower-cases an extension and strips a leading dot.
// "jpeg" is folded into "jpg" so both spell the same derivative.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}
