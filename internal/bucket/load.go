package bucket

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a catalogue from a YAML file. An empty path returns the default
// catalogue. Sections missing from the file keep their default values.
func Load(path string) (Catalogue, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("reading catalogue %s: %w", path, err)
	}

	var parsed Catalogue
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Catalogue{}, fmt.Errorf("parsing catalogue %s: %w", path, err)
	}
	if len(parsed.Sizes) > 0 {
		c.Sizes = parsed.Sizes
	}
	if len(parsed.Ratios) > 0 {
		c.Ratios = parsed.Ratios
	}

	if err := c.Validate(); err != nil {
		return Catalogue{}, fmt.Errorf("invalid catalogue %s: %w", path, err)
	}
	return c, nil
}
