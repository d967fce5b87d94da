// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"

	"github.com/pdiddy/article-harvester/internal/httputil"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// Registry builds the adapters named in cfg.Sources, in that order. An
// empty list selects every source in default order.
func Registry(cfg types.SearchConfig, client *httputil.Client) ([]Adapter, error) {
	sources := types.AllSources()
	if len(cfg.Sources) > 0 {
		sources = sources[:0:0]
		seen := make(map[types.Source]bool)
		for _, name := range cfg.Sources {
			s, err := types.ParseSource(name)
			if err != nil {
				return nil, err
			}
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}

	adapters := make([]Adapter, 0, len(sources))
	for _, s := range sources {
		a, err := NewAdapter(s, cfg, client)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// NewAdapter returns the adapter for one source.
func NewAdapter(source types.Source, cfg types.SearchConfig, client *httputil.Client) (Adapter, error) {
	switch source {
	case types.SourceOpenAlex:
		return &OpenAlexAdapter{Client: client, Email: cfg.ContactEmail}, nil
	case types.SourceEuropePMC:
		return &EuropePMCAdapter{Client: client}, nil
	case types.SourceCrossref:
		return &CrossrefAdapter{Client: client, Email: cfg.ContactEmail, ElsevierAPIKey: cfg.ElsevierAPIKey}, nil
	case types.SourceArxiv:
		return &ArxivAdapter{Client: client}, nil
	case types.SourceScienceDirect:
		return &ScienceDirectAdapter{Client: client, APIKey: cfg.ElsevierAPIKey}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}
