// Package streams holds the declarative per-stream catalog: endpoint,
// mandatory fields and the field mapping table for each supported entity
// type. The catalog is embedded at compile time and loaded once at startup.
package streams

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

//go:embed catalog.toml
var catalogTOML []byte

// Registry is the immutable set of stream definitions, keyed by name.
type Registry struct {
	defs map[string]*domain.StreamDefinition
}

// catalogFile mirrors the TOML layout.
type catalogFile struct {
	Streams []domain.StreamDefinition `toml:"stream"`
}

// Load parses the embedded catalog into a registry.
func Load() (*Registry, error) {
	return parse(catalogTOML)
}

func parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing stream catalog: %w", err)
	}

	defs := make(map[string]*domain.StreamDefinition, len(file.Streams))
	for i := range file.Streams {
		def := &file.Streams[i]
		if def.Name == "" || def.Endpoint == "" {
			return nil, fmt.Errorf("stream catalog entry %d: name and endpoint are required", i)
		}
		key := strings.ToLower(def.Name)
		if _, dup := defs[key]; dup {
			return nil, fmt.Errorf("stream catalog: duplicate stream %q", def.Name)
		}
		for j, m := range def.Fields {
			if m.Type == "" {
				def.Fields[j].Type = domain.FieldAny
			}
		}
		defs[key] = def
	}
	return &Registry{defs: defs}, nil
}

// Lookup returns the definition for a stream name. Matching is
// case-insensitive, so records tagged "Products" route to "products".
// Unknown streams get a permissive pass-through definition whose endpoint
// is the lowercased stream name, mirroring how unknown entity types were
// historically accepted.
func (r *Registry) Lookup(stream string) *domain.StreamDefinition {
	if def, ok := r.defs[strings.ToLower(stream)]; ok {
		return def
	}
	return &domain.StreamDefinition{
		Name:     stream,
		Endpoint: strings.ToLower(stream),
	}
}

// Known reports whether the stream has a catalog entry.
func (r *Registry) Known(stream string) bool {
	_, ok := r.defs[strings.ToLower(stream)]
	return ok
}

// Names returns the catalogued stream names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	return names
}
