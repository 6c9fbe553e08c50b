package intent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const maxCatalogBytes = 1 << 20

type catalogFile struct {
	Intents []Definition `yaml:"intents"`
}

// LoadFile reads a YAML intent catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open intent catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes a YAML intent catalog. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read intent catalog: %w", err)
	}
	if len(b) > maxCatalogBytes {
		return nil, errors.New("intent catalog too large")
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid intent catalog YAML: %w", err)
	}
	if len(file.Intents) == 0 {
		return nil, errors.New("intent catalog declares no intents")
	}

	return NewCatalog(file.Intents...)
}
