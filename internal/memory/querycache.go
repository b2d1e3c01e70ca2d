package memory

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	jsoniter "github.com/json-iterator/go"
)

var cacheJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// QueryArgs is the normalized shape of a query, used both to run it and to
// derive its cache key (spec §4.10: "keyed by a canonicalized query key —
// field-sorted JSON of normalized query").
type QueryArgs struct {
	Q            string   `json:"q"`
	Scopes       []Scope  `json:"scopes"`
	K            int      `json:"k"`
	Types        []string `json:"types,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	HasVector    bool     `json:"hasVector"`
}

// CanonicalKey renders a's fields as field-sorted JSON. jsoniter (like
// encoding/json) marshals struct fields in declaration order, so Scopes/
// Types/Tags are sorted here first to make the key independent of caller
// ordering, matching a Query for {scopes:[local,global]} to one for
// {scopes:[global,local]}.
func (a QueryArgs) CanonicalKey() string {
	norm := a
	norm.Scopes = sortedScopes(a.Scopes)
	norm.Types = sortedStrings(a.Types)
	norm.Tags = sortedStrings(a.Tags)
	raw, err := cacheJSON.Marshal(norm)
	if err != nil {
		return a.Q
	}
	return string(raw)
}

func sortedScopes(in []Scope) []Scope {
	out := append([]Scope(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

type cacheEntry struct {
	scopes  []Scope
	results []ScoredItem
}

// QueryCache is an LRU of query results, invalidated on any write to a
// scope it spans or on an index flush (spec §4.10). Entry-count budgeted
// (default 100), using the teacher's indirect golang-lru v1 dependency —
// kept distinct from the v2 generic cache used for C6's byte-budgeted
// payload/frame caches (SPEC_FULL §11).
type QueryCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// DefaultQueryCacheSize mirrors spec §4.10's default of 100 entries.
const DefaultQueryCacheSize = 100

// NewQueryCache builds a cache holding at most size entries.
func NewQueryCache(size int) (*QueryCache, error) {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &QueryCache{cache: c}, nil
}

// Get returns the cached result list for key, if present.
func (qc *QueryCache) Get(key string) ([]ScoredItem, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	v, ok := qc.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(cacheEntry).results, true
}

// Put caches result for key, tagged with the scopes it spans so a later
// write to any of them invalidates it.
func (qc *QueryCache) Put(key string, scopes []Scope, results []ScoredItem) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.cache.Add(key, cacheEntry{scopes: scopes, results: results})
}

// InvalidateScope evicts every cached query that touched scope.
func (qc *QueryCache) InvalidateScope(scope Scope) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	for _, k := range qc.cache.Keys() {
		entry, ok := qc.cache.Peek(k)
		if !ok {
			continue
		}
		for _, s := range entry.(cacheEntry).scopes {
			if s == scope {
				qc.cache.Remove(k)
				break
			}
		}
	}
}

// InvalidateAll drops every cached query, used on an index flush.
func (qc *QueryCache) InvalidateAll() {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.cache.Purge()
}
