package citation

import (
	"context"

	"github.com/beetlebugorg/zoning/internal/schema"
)

// Source types.
const (
	TypeMap  = "map"
	TypeCode = "code"
)

// Request describes the citations wanted for one result.
type Request struct {
	City      string   // jurisdiction key, e.g. "austin"
	Sections  []string // code sections to cite, e.g. "§25-2-492"
	Documents []string // code documents searched for the sections
	Offline   bool     // consult the cache only
}

// Provider supplies the sources attached to a result.
type Provider interface {
	Sources(ctx context.Context, req Request) []schema.Source
}

// MapSource is the zoning map citation every result carries.
func MapSource(city string) schema.Source {
	return schema.Source{Type: TypeMap, Cite: city + "_zoning_v2024"}
}

// CacheProvider cites the zoning map and any code sections found in a
// snippet cache. A nil cache cites the map only.
type CacheProvider struct {
	Cache *SnippetCache
}

// Sources returns the map source followed by each requested code section
// that has a snippet, in request order.
func (p *CacheProvider) Sources(_ context.Context, req Request) []schema.Source {
	sources := []schema.Source{MapSource(req.City)}
	if p == nil || p.Cache == nil || len(req.Documents) == 0 {
		return sources
	}
	for _, section := range req.Sections {
		if _, ok := p.Cache.Snippet(section, req.Documents, req.Offline); ok {
			sources = append(sources, schema.Source{Type: TypeCode, Cite: section})
		}
	}
	return sources
}
