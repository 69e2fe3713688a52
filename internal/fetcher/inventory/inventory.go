// Package inventory serves resources from a YAML document instead of a
// cloud API. It backs the mock fetcher and offline runs.
package inventory

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"opguide/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed mock.yaml
var mockInventory []byte

type document struct {
	Resources []domain.Resource `yaml:"resources"`
}

// Fetcher returns resources read from a YAML inventory.
type Fetcher struct {
	name string
	load func() ([]byte, error)
}

// NewMock serves the built-in sample inventory.
func NewMock() *Fetcher {
	return &Fetcher{
		name: "mock",
		load: func() ([]byte, error) { return mockInventory, nil },
	}
}

// NewFile reads the inventory at path on every fetch.
func NewFile(path string) *Fetcher {
	path = strings.TrimSpace(path)

	return &Fetcher{
		name: "file",
		load: func() ([]byte, error) {
			if path == "" {
				return nil, errors.New("inventory path is empty")
			}
			return os.ReadFile(path)
		},
	}
}

func (f *Fetcher) Name() string {
	return f.name
}

func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := f.load()
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	return Parse(bytes.NewReader(data))
}

// Parse decodes an inventory document. Unknown fields are rejected so typos
// in hand-written inventories surface early.
func Parse(r io.Reader) ([]domain.Resource, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode inventory: %w", err)
	}

	for i := range doc.Resources {
		r := &doc.Resources[i]
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("resource %d: id is empty", i)
		}
	}

	return doc.Resources, nil
}
