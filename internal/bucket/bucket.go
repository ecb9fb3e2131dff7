package bucket

import (
	"fmt"
	"math"
)

// Ratio is an aspect ratio expressed as width:height, always with W >= H.
type Ratio struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Value returns the ratio as a float (>= 1 for a valid ratio).
func (r Ratio) Value() float64 {
	return float64(r.W) / float64(r.H)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.W, r.H)
}

// Catalogue is the fixed set of sizes and aspect ratios requests are snapped to
type Catalogue struct {
	Sizes  []int   `yaml:"sizes"`
	Ratios []Ratio `yaml:"ratios"`
}

// Default returns the built-in catalogue
func Default() Catalogue {
	return Catalogue{
		Sizes: []int{24, 44, 100, 300, 500, 1000, 1500, 2500},
		Ratios: []Ratio{
			{W: 1, H: 1},
			{W: 5, H: 4},
			{W: 4, H: 3},
			{W: 16, H: 9},
			{W: 2, H: 1},
		},
	}
}

// Validate checks the catalogue invariants: both sets non-empty, sizes
// positive and strictly ascending, ratios landscape-normalised.
func (c Catalogue) Validate() error {
	if len(c.Sizes) == 0 {
		return fmt.Errorf("catalogue has no sizes")
	}
	if len(c.Ratios) == 0 {
		return fmt.Errorf("catalogue has no ratios")
	}
	for i, s := range c.Sizes {
		if s <= 0 {
			return fmt.Errorf("catalogue size %d is not positive", s)
		}
		if i > 0 && s <= c.Sizes[i-1] {
			return fmt.Errorf("catalogue sizes not ascending at %d", s)
		}
	}
	for _, r := range c.Ratios {
		if r.W <= 0 || r.H <= 0 || r.W < r.H {
			return fmt.Errorf("catalogue ratio %s must be W:H with W >= H > 0", r)
		}
	}
	return nil
}

// ClosestSize returns the catalogue size nearest to requested.
// On a tie the entry that comes first in the catalogue wins.
func (c Catalogue) ClosestSize(requested int) int {
	for _, s := range c.Sizes {
		if s == requested {
			return s
		}
	}

	best := c.Sizes[0]
	bestDistance := abs(requested - best)
	for _, s := range c.Sizes[1:] {
		if d := abs(requested - s); d < bestDistance {
			best, bestDistance = s, d
		}
	}
	return best
}

// ClosestRatio returns the catalogue ratio nearest to the orientation
// normalised ratio of width and height. Squares return exactly 1.
func (c Catalogue) ClosestRatio(width, height int) float64 {
	if width == height {
		return 1.0
	}

	long, short := width, height
	if !IsLandscape(width, height) {
		long, short = height, width
	}
	actual := float64(long) / float64(short)

	best := c.Ratios[0].Value()
	bestDistance := math.Abs(actual - best)
	for _, r := range c.Ratios[1:] {
		v := r.Value()
		if d := math.Abs(actual - v); d < bestDistance {
			best, bestDistance = v, d
		}
	}
	return best
}

// IsLandscape reports whether the image is wider than it is tall.
// Squares are not landscape.
func IsLandscape(width, height int) bool {
	return width > height
}

// Derive buckets the requested dimensions. With a single dimension the other
// one is computed from the original's bucketed aspect ratio and is at least 1.
// A nil pair means no transform: nothing requested, or one side requested but
// the original dimensions are unknown.
func (c Catalogue) Derive(width, height *int, originalWidth, originalHeight int) (*int, *int) {
	switch {
	case width == nil && height == nil:
		return nil, nil

	case width != nil && height != nil:
		w := c.ClosestSize(*width)
		h := c.ClosestSize(*height)
		return &w, &h
	}

	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, nil
	}

	ratio := c.ClosestRatio(originalWidth, originalHeight)
	landscape := IsLandscape(originalWidth, originalHeight)

	if width != nil {
		w := c.ClosestSize(*width)
		var h int
		if landscape {
			h = side(float64(w) / ratio)
		} else {
			h = side(float64(w) * ratio)
		}
		return &w, &h
	}

	h := c.ClosestSize(*height)
	var w int
	if landscape {
		w = side(float64(h) * ratio)
	} else {
		w = side(float64(h) / ratio)
	}
	return &w, &h
}

// side rounds a derived dimension, never below one pixel.
func side(v float64) int {
	return max(1, int(math.Round(v)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
