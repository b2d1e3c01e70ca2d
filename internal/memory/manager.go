package memory

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/confidence"
	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
	"github.com/andreahaku/llm-memory-mcp/internal/invindex"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
	"github.com/andreahaku/llm-memory-mcp/internal/vectorindex"
)

var log = memlog.Named("memory")

// Scope-independent ranking constants for the query pipeline's boost stage
// (spec §4.10 step (a)-(c)). These are distinct from confidence.Score's own
// recency term (C9): this is the query-time recency bonus, applied on top
// of the blended lexical/vector score before the confidence multiplier.
const (
	scopeBonusCommitted = 1.5
	scopeBonusLocal     = 1.0
	scopeBonusGlobal    = 0.5
	pinBonus            = 2.0
	recencyBoostWeight  = 1.0
	recencyBoostHalfLife = 7 * 24 * time.Hour

	bm25Weight   = 0.7
	vectorWeight = 0.3

	defaultQueryK = 10
	bm25Candidates = 2000
)

func scopeBonus(s Scope) float64 {
	switch s {
	case ScopeCommitted:
		return scopeBonusCommitted
	case ScopeLocal:
		return scopeBonusLocal
	case ScopeGlobal:
		return scopeBonusGlobal
	default:
		return 0
	}
}

// scopeState is one scope's open storage back-end plus its in-memory
// indices. Every mutating operation holds mu for the duration of the
// index update that must stay consistent with the adapter write.
type scopeState struct {
	mu sync.Mutex

	dir     string
	adapter Adapter
	inv     *invindex.Index
	invPath string
	flush   *invindex.FlushScheduler
	vec     *vectorindex.Index

	journalAppendCount int
	lastCompactAt      time.Time
}

// Manager is the C10 orchestrator: it routes operations to the scope's
// storage back-end, keeps the inverted/vector indices in sync, applies the
// confidence/ranking pipeline, and serves cached queries.
type Manager struct {
	cfg   *config.Config
	idGen *hashutil.IDGenerator
	redactor *hashutil.Redactor

	mu     sync.RWMutex
	scopes map[Scope]*scopeState

	queryCache *QueryCache
	nowFn      func() time.Time
}

// ManagerOption customizes a Manager at construction (used by tests to
// inject a fixed clock).
type ManagerOption func(*Manager)

// WithClock overrides the manager's notion of "now", for deterministic
// recency/decay tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.nowFn = now }
}

func newManager(cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	cache, err := NewQueryCache(DefaultQueryCacheSize)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      cfg,
		idGen:    hashutil.NewIDGenerator(),
		redactor: hashutil.NewRedactor(),
		scopes:   make(map[Scope]*scopeState),
		queryCache: cache,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ScopeBackend is everything the manager needs to run operations against one
// scope's storage back-end: the adapter itself plus a directory to persist
// the inverted-index snapshot in. Built by internal/engine's factory, which
// knows how to pick and open a concrete Adapter (file or
// video) per scope; kept out of this package to avoid an import cycle
// (internal/memory would otherwise have to import internal/filestore and
// internal/videostore, both of which import internal/memory for its types).
type ScopeBackend struct {
	Adapter Adapter
	Dir     string
}

// NewManager builds a Manager over the given per-scope storage back-ends,
// rebuilding each scope's inverted and vector indices from its catalog
// (loading a persisted inverted-index snapshot when present and valid, per
// spec §4.10's startup recovery). Vectors are not snapshotted separately;
// they are rebuilt from MemoryItemSummary.Vector, which travels with the
// durable catalog.
func NewManager(ctx context.Context, cfg *config.Config, backends map[Scope]ScopeBackend, opts ...ManagerOption) (*Manager, error) {
	m, err := newManager(cfg, opts...)
	if err != nil {
		return nil, err
	}

	for scope, backend := range backends {
		sc, err := buildScopeState(ctx, backend)
		if err != nil {
			return nil, err
		}
		m.scopes[scope] = sc
	}
	return m, nil
}

func buildScopeState(ctx context.Context, backend ScopeBackend) (*scopeState, error) {
	invPath := filepath.Join(backend.Dir, "inverted-index.json")

	inv, err := invindex.Load(invPath)
	if err != nil {
		inv = invindex.New(invindex.DefaultFieldWeights(), invindex.DefaultBM25Params())
	}

	vec := vectorindex.New()

	summaries, err := backend.Adapter.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	rebuildInv := inv.Len() == 0 && len(summaries) > 0
	for _, sum := range summaries {
		if len(sum.Vector) > 0 {
			if err := vec.Upsert(sum.ID, sum.Vector); err != nil {
				log.Warnw("skipping vector with mismatched dimension on rebuild", "id", sum.ID, "err", err)
			}
		}
		if !rebuildInv {
			continue
		}
		body, err := backend.Adapter.GetBody(ctx, sum.Payload)
		if err != nil {
			log.Warnw("skipping document body on inverted-index rebuild", "id", sum.ID, "err", err)
			continue
		}
		item := Hydrate(sum, body)
		inv.Upsert(invindex.Document{ID: item.ID, Title: item.Title, Text: item.Text, Code: item.Code, Tags: item.Facets.Tags})
	}

	return &scopeState{
		dir:           backend.Dir,
		adapter:       backend.Adapter,
		inv:           inv,
		invPath:       invPath,
		flush:         invindex.NewFlushScheduler(invindex.DefaultFlushPolicy()),
		vec:           vec,
		lastCompactAt: time.Now(),
	}, nil
}

func (m *Manager) now() time.Time { return m.nowFn() }

func (m *Manager) scope(s Scope) *scopeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scopes[s]
}

// Close releases every open scope's storage back-end.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, sc := range m.scopes {
		if err := sc.adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Upsert implements memory.upsert (spec §6): assigns an ID if missing,
// redacts secrets, writes the body to the active store, and keeps the
// inverted/vector indices in sync.
func (m *Manager) Upsert(ctx context.Context, item MemoryItem) (MemoryItem, error) {
	if item.Type == "" || item.Scope == "" {
		return MemoryItem{}, ErrInvalidInput
	}
	sc := m.scope(item.Scope)
	if sc == nil {
		return MemoryItem{}, ErrInvalidInput
	}

	cleanTitle, titleRefs := m.redactor.RedactSecrets(item.Title)
	cleanText, textRefs := m.redactor.RedactSecrets(item.Text)
	cleanCode, codeRefs := m.redactor.RedactSecrets(item.Code)
	item.Title, item.Text, item.Code = cleanTitle, cleanText, cleanCode
	item.Security.SecretHashRefs = append(append(append(
		append([]hashutil.ContentHash{}, item.Security.SecretHashRefs...), titleRefs...), textRefs...), codeRefs...)

	now := m.now()
	if item.ID == "" {
		item.ID = m.idGen.New()
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if existing, ok, err := sc.adapter.Get(ctx, item.ID); err == nil && ok {
		item.CreatedAt = existing.CreatedAt
		item.Version = existing.Version + 1
	} else {
		item.CreatedAt = now
		item.Version = 1
	}
	item.UpdatedAt = now

	return m.writeThrough(ctx, sc, item)
}

// writeThrough snapshots a fresh confidence score onto the item, persists it
// through the scope's adapter, keeps the inverted/vector indices and query
// cache in sync, and flushes the inverted index when its schedule says to.
// Every mutating operation (Upsert and the operations in operations.go)
// funnels through here so they can never drift out of sync with each other.
func (m *Manager) writeThrough(ctx context.Context, sc *scopeState, item MemoryItem) (MemoryItem, error) {
	now := m.now()
	conf := confidence.Score(m.cfg.ConfidenceWeights, confidence.Inputs{
		HelpfulCount:    item.Quality.HelpfulCount,
		NotHelpfulCount: item.Quality.NotHelpfulCount,
		DecayedUsage:    item.Quality.DecayedUsage,
		LastAccessedAt:  item.Quality.LastAccessedAt,
		ContextMatch:    0.5,
		Now:             now,
	})
	item.Quality.Confidence = confidence.ApplyPin(conf, item.Quality.Pinned, m.cfg.PinFloor, m.cfg.PinMultiplier)

	ref, err := sc.adapter.Put(ctx, item)
	if err != nil {
		return MemoryItem{}, err
	}

	sc.inv.Upsert(invindex.Document{ID: item.ID, Title: item.Title, Text: item.Text, Code: item.Code, Tags: item.Facets.Tags})
	if len(item.Vector) > 0 {
		if err := sc.vec.Upsert(item.ID, item.Vector); err != nil {
			return MemoryItem{}, err
		}
	} else {
		sc.vec.Remove(item.ID)
	}
	sc.journalAppendCount++
	if sc.flush.ShouldFlush(sc.inv) {
		if err := invindex.Flush(sc.inv, sc.invPath, sc.flush); err != nil {
			log.Warnw("inverted index flush failed", "scope", item.Scope, "err", err)
		}
	}
	_ = ref

	m.queryCache.InvalidateScope(item.Scope)
	return item, nil
}

// mutateItem loads id's full item from scope, applies fn, bumps its version,
// and writes it back through writeThrough. Used by the link/pin/tag/
// feedback/use/patch/append/renew family of operations (spec §4.10/§6),
// which all share the same "read full item, mutate quality or links or body,
// persist atomically" shape.
func (m *Manager) mutateItem(ctx context.Context, id string, scope Scope, fn func(*MemoryItem) error) (MemoryItem, error) {
	sc := m.scope(scope)
	if sc == nil {
		return MemoryItem{}, ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sum, ok, err := sc.adapter.Get(ctx, id)
	if err != nil {
		return MemoryItem{}, err
	}
	if !ok {
		return MemoryItem{}, ErrNotFound
	}
	body, err := sc.adapter.GetBody(ctx, sum.Payload)
	if err != nil {
		return MemoryItem{}, err
	}
	item := Hydrate(sum, body)

	if err := fn(&item); err != nil {
		return MemoryItem{}, err
	}

	item.UpdatedAt = m.now()
	item.Version++
	return m.writeThrough(ctx, sc, item)
}

// Get implements memory.get: if scope is nil, resolution tries committed,
// local, global in that order and returns the first hit (spec §4.10).
func (m *Manager) Get(ctx context.Context, id string, scope *Scope) (MemoryItem, error) {
	scopes := ScopeResolutionOrder
	if scope != nil {
		scopes = []Scope{*scope}
	}
	for _, s := range scopes {
		sc := m.scope(s)
		if sc == nil {
			continue
		}
		sum, ok, err := sc.adapter.Get(ctx, id)
		if err != nil {
			return MemoryItem{}, err
		}
		if !ok {
			continue
		}
		body, err := sc.adapter.GetBody(ctx, sum.Payload)
		if err != nil {
			return MemoryItem{}, err
		}
		return Hydrate(sum, body), nil
	}
	return MemoryItem{}, ErrNotFound
}

// Delete implements memory.delete.
func (m *Manager) Delete(ctx context.Context, id string, scope Scope) (bool, error) {
	sc := m.scope(scope)
	if sc == nil {
		return false, ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.adapter.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	sc.inv.Remove(id)
	sc.vec.Remove(id)
	m.queryCache.InvalidateScope(scope)
	return true, nil
}

// List implements memory.list.
func (m *Manager) List(ctx context.Context, scope Scope) ([]MemoryItemSummary, error) {
	sc := m.scope(scope)
	if sc == nil {
		return nil, ErrInvalidInput
	}
	return sc.adapter.Catalog(ctx)
}

// QueryRequest is the normalized input to Query (spec §6 memory.query).
type QueryRequest struct {
	Q       string
	Scopes  []Scope // empty = every open scope, resolution-priority order
	K       int
	Types   []ItemType
	Tags    []string
	Vector  []float64
	Context Context
}

// ScoredItem is one query result: the hydrated item plus its components.
type ScoredItem struct {
	Item       MemoryItem
	Score      float64
	Components map[string]float64
}

// Query implements memory.query: BM25 candidates, optional vector blend,
// filters, boosts, and the confidence multiplier, in the deterministic
// order spec §4.10 fixes.
func (m *Manager) Query(ctx context.Context, req QueryRequest) ([]ScoredItem, error) {
	if req.K <= 0 {
		req.K = defaultQueryK
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = ScopeResolutionOrder
	}

	cacheArgs := QueryArgs{Q: req.Q, Scopes: scopes, K: req.K, HasVector: len(req.Vector) > 0}
	for _, t := range req.Types {
		cacheArgs.Types = append(cacheArgs.Types, string(t))
	}
	cacheArgs.Tags = req.Tags
	key := cacheArgs.CanonicalKey()
	if cached, ok := m.queryCache.Get(key); ok {
		return cached, nil
	}

	bm25 := make(map[string]float64)
	vec := make(map[string]float64)
	idScope := make(map[string]Scope)

	for _, s := range scopes {
		sc := m.scope(s)
		if sc == nil {
			continue
		}
		if req.Q != "" {
			for i, r := range sc.inv.Query(req.Q) {
				if i >= bm25Candidates {
					break
				}
				bm25[r.ID] = r.Score
				idScope[r.ID] = s
			}
		}
		if len(req.Vector) > 0 {
			results, err := sc.vec.Query(req.Vector)
			if err != nil {
				return nil, err
			}
			for _, r := range results {
				vec[r.ID] = r.Score
				idScope[r.ID] = s
			}
		}
	}

	blended := vectorindex.Blend(bm25, vec, bm25Weight, vectorWeight)

	now := m.now()
	candidates := make([]ScoredItem, 0, len(blended))
	for _, b := range blended {
		s, ok := idScope[b.ID]
		if !ok {
			continue
		}
		sc := m.scope(s)
		sum, ok, err := sc.adapter.Get(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !matchesFilters(sum, req) {
			continue
		}

		ctxMatch := contextMatchScore(req.Context, req.Tags, sum.Context, sum.Facets)
		conf := confidence.Score(m.cfg.ConfidenceWeights, confidence.Inputs{
			HelpfulCount:    sum.Quality.HelpfulCount,
			NotHelpfulCount: sum.Quality.NotHelpfulCount,
			DecayedUsage:    sum.Quality.DecayedUsage,
			LastAccessedAt:  sum.Quality.LastAccessedAt,
			ContextMatch:    ctxMatch,
			Now:             now,
		})
		conf = confidence.ApplyPin(conf, sum.Quality.Pinned, m.cfg.PinFloor, m.cfg.PinMultiplier)

		boosted := b.Score + scopeBonus(s)
		if sum.Quality.Pinned {
			boosted += pinBonus
		}
		boosted += recencyBoost(sum.UpdatedAt, now)
		final := boosted * conf

		body, err := sc.adapter.GetBody(ctx, sum.Payload)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ScoredItem{
			Item:  Hydrate(sum, body),
			Score: final,
			Components: map[string]float64{
				"bm25": bm25[b.ID], "vector": vec[b.ID], "scope": scopeBonus(s), "confidence": conf,
			},
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Item.ID < candidates[j].Item.ID
	})
	if len(candidates) > req.K {
		candidates = candidates[:req.K]
	}

	m.queryCache.Put(key, scopes, candidates)
	return candidates, nil
}

func recencyBoost(updatedAt, now time.Time) float64 {
	days := now.Sub(updatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	halfLifeDays := recencyBoostHalfLife.Hours() / 24
	return recencyBoostWeight * math.Exp2(-days/halfLifeDays)
}

func matchesFilters(sum MemoryItemSummary, req QueryRequest) bool {
	if len(req.Types) > 0 {
		found := false
		for _, t := range req.Types {
			if sum.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(req.Tags) > 0 {
		for _, tag := range req.Tags {
			has := false
			for _, t := range sum.Facets.Tags {
				if t == tag {
					has = true
					break
				}
			}
			if !has {
				return false
			}
		}
	}
	return true
}

// contextMatchScore implements spec §4.9's weighted match over
// {repoId, file, tool, tags∪symbols}: scalar fields score 1/0 on equality,
// the tags∪symbols field scores a Jaccard overlap between the query's
// requested tags and the item's facets. Returns 0.5 neutral when the
// caller supplied no query context and no query tags at all.
func contextMatchScore(query Context, queryTags []string, stored Context, facets Facets) float64 {
	if (query == Context{}) && len(queryTags) == 0 {
		return 0.5
	}
	total, matched := 0.0, 0.0
	check := func(q, s string) {
		if q == "" {
			return
		}
		total++
		if q == s {
			matched++
		}
	}
	check(query.RepoID, stored.RepoID)
	check(query.File, stored.File)
	check(query.Tool, stored.Tool)

	if len(queryTags) > 0 {
		total++
		matched += jaccard(queryTags, append(append([]string{}, facets.Tags...), facets.Symbols...))
	}

	if total == 0 {
		return 0.5
	}
	return matched / total
}

// jaccard returns |a ∩ b| / |a ∪ b| over two string sets, 0 if both empty.
func jaccard(a, b []string) float64 {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		union[v] = struct{}{}
	}
	inter := 0
	for _, v := range b {
		union[v] = struct{}{}
		if _, ok := set[v]; ok {
			inter++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}
