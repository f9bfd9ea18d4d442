package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/umbratrace/core"
)

// File is the on-disk layout of a catalog.
type File struct {
	Records []core.Record `yaml:"records"`
}

// Load decodes a YAML catalog from r and builds a Catalog from it.
func Load(r io.Reader) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return New(nil)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogFile, err)
	}
	return New(file.Records)
}

// LoadFile reads a YAML catalog file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// WriteYAML encodes records as a YAML catalog file.
func WriteYAML(w io.Writer, records []core.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{Records: records}); err != nil {
		return err
	}
	return enc.Close()
}
