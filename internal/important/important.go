// Package important manages the user-curated set of hostnames whose tabs are
// pinned to the Important group.
//
// Every operation is a read-modify-write against the KV collaborator with no
// transaction around it. Two writers racing (the popup and an event handler,
// or two daemons sharing a database) can lose an update: the last SetStrings
// wins.
package important

import (
	"context"
	"fmt"
	"strings"
)

// Key is the KV key holding the ordered hostname list.
const Key = "importantDomains"

// KV is the persistence collaborator.
type KV interface {
	Strings(ctx context.Context, key string) ([]string, error)
	SetStrings(ctx context.Context, key string, values []string) error
}

// Set is a membership snapshot of the Important hostnames.
type Set map[string]struct{}

// NewSet builds a Set from hostnames.
func NewSet(hosts ...string) Set {
	s := make(Set, len(hosts))
	for _, h := range hosts {
		if h = Normalize(h); h != "" {
			s[h] = struct{}{}
		}
	}
	return s
}

// Has reports whether host is in the set. A nil Set is empty.
func (s Set) Has(host string) bool {
	_, ok := s[host]
	return ok
}

// Normalize trims and lower-cases a hostname the way the URL parser
// reports it.
func Normalize(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// Store reads and writes the Important hostnames.
type Store struct {
	kv KV
}

// NewStore returns a Store over kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// List returns the hostnames in insertion order with duplicates removed.
func (s *Store) List(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Strings(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load important domains: %w", err)
	}
	return dedupe(raw), nil
}

// Set returns a membership snapshot.
func (s *Store) Set(ctx context.Context) (Set, error) {
	hosts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewSet(hosts...), nil
}

// Contains reports whether host is marked Important.
func (s *Store) Contains(ctx context.Context, host string) (bool, error) {
	set, err := s.Set(ctx)
	if err != nil {
		return false, err
	}
	return set.Has(Normalize(host)), nil
}

// Add appends host if it is not already present. It reports whether the
// set changed.
func (s *Store) Add(ctx context.Context, host string) (bool, error) {
	host = Normalize(host)
	if host == "" {
		return false, fmt.Errorf("empty hostname")
	}
	hosts, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, h := range hosts {
		if h == host {
			return false, nil
		}
	}
	if err := s.save(ctx, append(hosts, host)); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes host. It reports whether the set changed.
func (s *Store) Remove(ctx context.Context, host string) (bool, error) {
	host = Normalize(host)
	hosts, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	kept := hosts[:0:0]
	for _, h := range hosts {
		if h != host {
			kept = append(kept, h)
		}
	}
	if len(kept) == len(hosts) {
		return false, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// ImportMerge unions incoming into the stored set, keeping existing order
// and appending new hostnames in the order given. It returns the merged
// list and the number of genuinely new entries.
func (s *Store) ImportMerge(ctx context.Context, incoming []string) ([]string, int, error) {
	hosts, err := s.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	merged, added := Merge(hosts, incoming)
	if added == 0 {
		return merged, 0, nil
	}
	if err := s.save(ctx, merged); err != nil {
		return nil, 0, err
	}
	return merged, added, nil
}

// Merge returns the union of existing and incoming along with the number of
// entries taken from incoming.
func Merge(existing, incoming []string) ([]string, int) {
	merged := dedupe(existing)
	seen := make(map[string]bool, len(merged))
	for _, h := range merged {
		seen[h] = true
	}
	added := 0
	for _, h := range incoming {
		h = Normalize(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		merged = append(merged, h)
		added++
	}
	return merged, added
}

func (s *Store) save(ctx context.Context, hosts []string) error {
	if err := s.kv.SetStrings(ctx, Key, hosts); err != nil {
		return fmt.Errorf("save important domains: %w", err)
	}
	return nil
}

func dedupe(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = Normalize(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
