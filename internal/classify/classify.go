package classify

import (
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/types"
)

// Kind is the classification outcome for a tab.
type Kind int

const (
	Skip Kind = iota
	Important
	Domain
)

func (k Kind) String() string {
	switch k {
	case Important:
		return "important"
	case Domain:
		return "domain"
	default:
		return "skip"
	}
}

// Result is the bucket a tab belongs to. Key is the root domain for Domain
// results and the hostname for Important results.
type Result struct {
	Kind Kind
	Key  string
}

// Tab classifies a tab. Tabs whose URL has no parseable host (browser
// internal pages, extension pages, about:) are skipped. A nil roots uses the
// built-in heuristic.
func Tab(tab *types.Tab, set important.Set, roots *domain.Classifier) Result {
	host, ok := domain.Hostname(tab.URL)
	if !ok {
		return Result{Kind: Skip}
	}
	if set.Has(host) {
		return Result{Kind: Important, Key: host}
	}
	return Result{Kind: Domain, Key: roots.Root(host)}
}

// Duplicates scans tabs in order and returns the tabs to keep and the IDs of
// later tabs whose exact URL was already seen. Only tabs with a parseable
// host take part; skipped tabs are always kept.
func Duplicates(tabs []*types.Tab) (keep []*types.Tab, closeIDs []int) {
	seen := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		if _, ok := domain.Hostname(tab.URL); !ok {
			keep = append(keep, tab)
			continue
		}
		if seen[tab.URL] {
			closeIDs = append(closeIDs, tab.ID)
			continue
		}
		seen[tab.URL] = true
		keep = append(keep, tab)
	}
	return keep, closeIDs
}
