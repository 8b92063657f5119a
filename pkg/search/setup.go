package search

import (
	"github.com/delverhq/delver/pkg/config"
)

// BuildRegistry registers one adapter per configured provider, in the
// generic fallback order. Providers absent from the configuration are
// skipped entirely; availability (key validity) is checked per search.
func BuildRegistry(providers map[string]*config.SearchProviderConfig) *Registry {
	reg := NewRegistry()
	order := []string{"tavily", "duckduckgo", "serper", "arxiv", "pubmed", "semantic_scholar", "exa"}
	for _, name := range order {
		cfg, ok := providers[name]
		if !ok {
			continue
		}
		switch name {
		case "tavily":
			reg.Register(NewTavilyProvider(cfg))
		case "duckduckgo":
			reg.Register(NewDuckDuckGoProvider(cfg))
		case "serper":
			reg.Register(NewSerperProvider(cfg))
		case "arxiv":
			reg.Register(NewArxivProvider(cfg))
		case "pubmed":
			reg.Register(NewPubMedProvider(cfg))
		case "semantic_scholar":
			reg.Register(NewSemanticScholarProvider(cfg))
		case "exa":
			reg.Register(NewExaProvider(cfg))
		}
	}
	return reg
}
