package search

import "strings"

// hostProviders maps hostname substrings from suggested sources to
// canonical provider names. Entries are checked in order so the more
// specific mapping wins.
var hostProviders = []struct {
	host     string
	provider string
}{
	{"arxiv.org", "arxiv"},
	{"pubmed.ncbi", "pubmed"},
	{"ncbi.nlm.nih.gov", "pubmed"},
	{"semanticscholar.org", "semantic_scholar"},
	{"exa.ai", "exa"},
	{"github.com", "duckduckgo"},
	{"stackoverflow.com", "duckduckgo"},
	{"wikipedia.org", "duckduckgo"},
	{"google.", "serper"},
}

// domainDefaults appends per-domain provider orderings after the
// source-derived entries.
var domainDefaults = map[string][]string{
	"scientific": {"arxiv", "pubmed", "semantic_scholar", "exa", "tavily"},
	"academic":   {"arxiv", "semantic_scholar", "exa", "tavily"},
	"medical":    {"pubmed", "semantic_scholar", "tavily"},
	"technical":  {"duckduckgo", "exa", "tavily", "serper"},
	"news":       {"tavily", "serper", "exa"},
}

// genericProfile is the fallback ordering for domains with no specific
// defaults.
var genericProfile = []string{"tavily", "duckduckgo", "serper"}

// DefaultProfile returns a copy of the generic provider ordering.
func DefaultProfile() []string {
	out := make([]string, len(genericProfile))
	copy(out, genericProfile)
	return out
}

// DeriveProfile builds an ordered, duplicate-free provider preference
// from domain metadata: each suggested source's hostname is mapped to a
// canonical provider in order, then the domain defaults (or the generic
// profile) are appended.
func DeriveProfile(domain string, suggestedSources []string) []string {
	var profile []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		profile = append(profile, name)
	}

	for _, source := range suggestedSources {
		source = strings.ToLower(strings.TrimSpace(source))
		if source == "" {
			continue
		}
		for _, m := range hostProviders {
			if strings.Contains(source, m.host) {
				add(m.provider)
				break
			}
		}
	}

	defaults, ok := domainDefaults[strings.ToLower(strings.TrimSpace(domain))]
	if !ok {
		defaults = genericProfile
	}
	for _, name := range defaults {
		add(name)
	}
	return profile
}
