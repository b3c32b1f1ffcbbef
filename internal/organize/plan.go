package organize

import (
	"sort"
	"strings"

	"github.com/lotas/tabheinzel/internal/classify"
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/types"
)

// BucketKind distinguishes the three bucket roles.
type BucketKind int

const (
	BucketImportant BucketKind = iota
	BucketDomain
	BucketUnsorted
)

// Bucket is a set of tabs that will become one group.
type Bucket struct {
	Title  string
	Color  string
	Kind   BucketKind
	Start  int // target index of the first member
	TabIDs []int
}

// Entry places one tab.
type Entry struct {
	TabID int
	Index int
	Group string
	// FromGroup is the tab's group when the snapshot was taken.
	FromGroup int
}

// Plan is the deterministic layout computed from one window snapshot.
// Entries are in index order; buckets are in priority order
// (Important, domains by key, Unsorted).
type Plan struct {
	WindowID int
	Entries  []Entry
	Buckets  []Bucket
	Skipped  []int
}

// Empty reports whether the plan places no tabs.
func (p *Plan) Empty() bool {
	return len(p.Entries) == 0
}

// Bucket returns the bucket with the given title, or nil.
func (p *Plan) Bucket(title string) *Bucket {
	for i := range p.Buckets {
		if p.Buckets[i].Title == title {
			return &p.Buckets[i]
		}
	}
	return nil
}

// Build partitions tabs into buckets and assigns contiguous target indices.
// Tabs without a parseable host are listed in Skipped and left alone.
// A nil roots uses the built-in root domain heuristic.
func Build(windowID int, tabs []*types.Tab, set important.Set, roots *domain.Classifier) *Plan {
	p := &Plan{WindowID: windowID}

	var importantTabs []*types.Tab
	byDomain := make(map[string][]*types.Tab)

	for _, tab := range tabs {
		res := classify.Tab(tab, set, roots)
		switch res.Kind {
		case classify.Skip:
			p.Skipped = append(p.Skipped, tab.ID)
		case classify.Important:
			importantTabs = append(importantTabs, tab)
		case classify.Domain:
			byDomain[res.Key] = append(byDomain[res.Key], tab)
		}
	}

	// A lone tab does not get a group of its own.
	var domains []string
	var singles []*types.Tab
	for key, group := range byDomain {
		if len(group) > 1 {
			domains = append(domains, key)
		} else {
			singles = append(singles, group...)
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		a, b := strings.ToLower(domains[i]), strings.ToLower(domains[j])
		if a != b {
			return a < b
		}
		return domains[i] < domains[j]
	})

	next := 0
	add := func(title, color string, kind BucketKind, members []*types.Tab) {
		if len(members) == 0 {
			return
		}
		sortByTitle(members)
		b := Bucket{Title: title, Color: color, Kind: kind, Start: next}
		for _, tab := range members {
			b.TabIDs = append(b.TabIDs, tab.ID)
			p.Entries = append(p.Entries, Entry{
				TabID:     tab.ID,
				Index:     next,
				Group:     title,
				FromGroup: tab.GroupID,
			})
			next++
		}
		p.Buckets = append(p.Buckets, b)
	}

	add(types.TitleImportant, types.ColorImportant, BucketImportant, importantTabs)
	for i, key := range domains {
		add(key, types.Palette[i%len(types.Palette)], BucketDomain, byDomain[key])
	}
	add(types.TitleUnsorted, types.ColorUnsorted, BucketUnsorted, singles)

	return p
}

// sortByTitle orders tabs by case-insensitive title. Ties keep the current
// tab order so the same snapshot always yields the same plan.
func sortByTitle(tabs []*types.Tab) {
	sort.SliceStable(tabs, func(i, j int) bool {
		a, b := strings.ToLower(tabs[i].Title), strings.ToLower(tabs[j].Title)
		if a != b {
			return a < b
		}
		if tabs[i].Index != tabs[j].Index {
			return tabs[i].Index < tabs[j].Index
		}
		return tabs[i].ID < tabs[j].ID
	})
}
