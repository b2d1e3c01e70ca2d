package memory

import (
	"context"
	"sort"

	"github.com/andreahaku/llm-memory-mcp/internal/confidence"
)

// Pin implements memory.pin: pins id, which floors its confidence at
// cfg.PinFloor and boosts it by cfg.PinMultiplier in every future query
// (spec §4.9/§4.10).
func (m *Manager) Pin(ctx context.Context, id string, scope Scope) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		item.Quality.Pinned = true
		return nil
	})
}

// Unpin implements memory.unpin.
func (m *Manager) Unpin(ctx context.Context, id string, scope Scope) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		item.Quality.Pinned = false
		return nil
	})
}

// Tag implements memory.tag: adds and removes facet tags in one call, so a
// caller can re-tag an item without first fetching its current tag set.
func (m *Manager) Tag(ctx context.Context, id string, scope Scope, add, remove []string) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		item.Facets.Tags = applyTagDelta(item.Facets.Tags, add, remove)
		return nil
	})
}

func applyTagDelta(tags, add, remove []string) []string {
	removeSet := make(map[string]struct{}, len(remove))
	for _, t := range remove {
		removeSet[t] = struct{}{}
	}
	seen := make(map[string]struct{}, len(tags)+len(add))
	out := make([]string, 0, len(tags)+len(add))
	for _, t := range append(append([]string{}, tags...), add...) {
		if _, skip := removeSet[t]; skip {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Feedback implements memory.feedback({id, helpful}): records explicit
// helpful/not-helpful signal, which feeds the feedback term of the
// confidence score (spec §4.9).
func (m *Manager) Feedback(ctx context.Context, id string, scope Scope, helpful bool) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		if helpful {
			item.Quality.HelpfulCount++
		} else {
			item.Quality.NotHelpfulCount++
		}
		now := m.now()
		item.Quality.LastFeedbackAt = &now
		return nil
	})
}

// Use implements memory.use({id}): records a reuse, advancing decayedUsage
// by spec §4.9's per-access decay-then-increment rule and refreshing the
// recency clock.
func (m *Manager) Use(ctx context.Context, id string, scope Scope) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		now := m.now()
		item.Quality.DecayedUsage = confidence.DecayUsage(item.Quality.DecayedUsage, item.Quality.LastAccessedAt, now)
		item.Quality.ReuseCount++
		item.Quality.LastAccessedAt = &now
		item.Quality.LastUsedAt = &now
		return nil
	})
}

// Renew implements memory.renew: refreshes an item's recency clock without
// counting as a reuse, for callers that want to keep an item from aging out
// of query results without inflating its usage signal.
func (m *Manager) Renew(ctx context.Context, id string, scope Scope) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		now := m.now()
		item.Quality.LastAccessedAt = &now
		return nil
	})
}

// Link implements memory.link: adds a directed edge from id to targetID, if
// one with the same target and relation doesn't already exist.
func (m *Manager) Link(ctx context.Context, id string, scope Scope, targetID string, relation Relation) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		for _, l := range item.Links {
			if l.TargetID == targetID && l.Relation == relation {
				return nil
			}
		}
		item.Links = append(item.Links, Link{TargetID: targetID, Relation: relation})
		return nil
	})
}

// PatchRequest is memory.patch's input: every field is optional, so only
// fields present in the request overwrite the stored item.
type PatchRequest struct {
	Title       *string
	Text        *string
	Code        *string
	Language    *string
	Facets      *Facets
	Context     *Context
	TTLDays     *int
	Sensitivity *Sensitivity
}

// Patch implements memory.patch: a partial update of an item's body/facets/
// context/TTL/sensitivity. Title/Text/Code go through the same secret
// redaction as Upsert.
func (m *Manager) Patch(ctx context.Context, id string, scope Scope, patch PatchRequest) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		if patch.Title != nil {
			clean, refs := m.redactor.RedactSecrets(*patch.Title)
			item.Title = clean
			item.Security.SecretHashRefs = append(item.Security.SecretHashRefs, refs...)
		}
		if patch.Text != nil {
			clean, refs := m.redactor.RedactSecrets(*patch.Text)
			item.Text = clean
			item.Security.SecretHashRefs = append(item.Security.SecretHashRefs, refs...)
		}
		if patch.Code != nil {
			clean, refs := m.redactor.RedactSecrets(*patch.Code)
			item.Code = clean
			item.Security.SecretHashRefs = append(item.Security.SecretHashRefs, refs...)
		}
		if patch.Language != nil {
			item.Language = *patch.Language
		}
		if patch.Facets != nil {
			item.Facets = *patch.Facets
		}
		if patch.Context != nil {
			item.Context = *patch.Context
		}
		if patch.TTLDays != nil {
			item.Quality.TTLDays = patch.TTLDays
		}
		if patch.Sensitivity != nil {
			item.Security.Sensitivity = *patch.Sensitivity
		}
		return nil
	})
}

// Append implements memory.append: appends to an item's text/code bodies
// rather than replacing them, for callers accumulating a running note.
func (m *Manager) Append(ctx context.Context, id string, scope Scope, text, code string) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		if text != "" {
			clean, refs := m.redactor.RedactSecrets(text)
			if item.Text != "" {
				item.Text += "\n\n" + clean
			} else {
				item.Text = clean
			}
			item.Security.SecretHashRefs = append(item.Security.SecretHashRefs, refs...)
		}
		if code != "" {
			clean, refs := m.redactor.RedactSecrets(code)
			if item.Code != "" {
				item.Code += "\n\n" + clean
			} else {
				item.Code = clean
			}
			item.Security.SecretHashRefs = append(item.Security.SecretHashRefs, refs...)
		}
		return nil
	})
}

// Merge implements memory.merge: folds secondaryID's body and facets into
// primaryID, links primary to secondary as a duplicate, and deletes
// secondary outright (spec §3's link/relation model is how the merge is
// recorded, rather than silently discarding the secondary's provenance).
func (m *Manager) Merge(ctx context.Context, primaryID, secondaryID string, scope Scope) (MemoryItem, error) {
	sc := m.scope(scope)
	if sc == nil {
		return MemoryItem{}, ErrInvalidInput
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	primarySum, ok, err := sc.adapter.Get(ctx, primaryID)
	if err != nil {
		return MemoryItem{}, err
	}
	if !ok {
		return MemoryItem{}, ErrNotFound
	}
	secondarySum, ok, err := sc.adapter.Get(ctx, secondaryID)
	if err != nil {
		return MemoryItem{}, err
	}
	if !ok {
		return MemoryItem{}, ErrNotFound
	}

	primaryBody, err := sc.adapter.GetBody(ctx, primarySum.Payload)
	if err != nil {
		return MemoryItem{}, err
	}
	secondaryBody, err := sc.adapter.GetBody(ctx, secondarySum.Payload)
	if err != nil {
		return MemoryItem{}, err
	}

	primary := Hydrate(primarySum, primaryBody)
	secondary := Hydrate(secondarySum, secondaryBody)

	if secondary.Text != "" {
		if primary.Text != "" {
			primary.Text += "\n\n" + secondary.Text
		} else {
			primary.Text = secondary.Text
		}
	}
	if secondary.Code != "" {
		if primary.Code != "" {
			primary.Code += "\n\n" + secondary.Code
		} else {
			primary.Code = secondary.Code
		}
	}
	primary.Facets.Tags = applyTagDelta(primary.Facets.Tags, secondary.Facets.Tags, nil)
	primary.Facets.Files = applyTagDelta(primary.Facets.Files, secondary.Facets.Files, nil)
	primary.Facets.Symbols = applyTagDelta(primary.Facets.Symbols, secondary.Facets.Symbols, nil)
	primary.Quality.HelpfulCount += secondary.Quality.HelpfulCount
	primary.Quality.NotHelpfulCount += secondary.Quality.NotHelpfulCount
	primary.Quality.ReuseCount += secondary.Quality.ReuseCount
	primary.Links = append(primary.Links, Link{TargetID: secondaryID, Relation: RelationDuplicates})

	primary.UpdatedAt = m.now()
	primary.Version++

	merged, err := m.writeThrough(ctx, sc, primary)
	if err != nil {
		return MemoryItem{}, err
	}

	if err := sc.adapter.Delete(ctx, secondaryID); err != nil {
		return MemoryItem{}, err
	}
	sc.inv.Remove(secondaryID)
	sc.vec.Remove(secondaryID)
	m.queryCache.InvalidateScope(scope)

	return merged, nil
}

// ContextPackRequest is memory.contextPack's input (spec §6): a query plus
// either a token or character budget, whichever the caller is optimizing
// for.
type ContextPackRequest struct {
	Q           string
	Scopes      []Scope
	K           int
	TokenBudget int
	MaxChars    int
	Context     Context
}

// ContextPackGroups buckets items by kind, matching the four groups spec §6
// names explicitly.
type ContextPackGroups struct {
	Snippets []MemoryItem
	Facts    []MemoryItem
	Patterns []MemoryItem
	Configs  []MemoryItem
}

// ContextPackResult is memory.contextPack's output.
type ContextPackResult struct {
	Groups    ContextPackGroups
	Truncated bool
}

// approxTokens estimates token count the way the teacher's context-budget
// code does for non-tokenizer-aware budgeting: roughly 4 characters per
// token.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// ContextPack implements memory.contextPack: runs the normal query pipeline
// then greedily assembles results into a token/char budget in ranked order,
// so the highest-scoring items are the ones guaranteed to survive
// truncation (spec §6).
func (m *Manager) ContextPack(ctx context.Context, req ContextPackRequest) (ContextPackResult, error) {
	k := req.K
	if k <= 0 {
		k = defaultQueryK
	}
	results, err := m.Query(ctx, QueryRequest{Q: req.Q, Scopes: req.Scopes, K: k, Context: req.Context})
	if err != nil {
		return ContextPackResult{}, err
	}

	var out ContextPackResult
	usedChars, usedTokens := 0, 0
	for _, r := range results {
		size := len(r.Item.Title) + len(r.Item.Text) + len(r.Item.Code)
		tokens := approxTokens(r.Item.Title) + approxTokens(r.Item.Text) + approxTokens(r.Item.Code)

		if req.MaxChars > 0 && usedChars+size > req.MaxChars {
			out.Truncated = true
			continue
		}
		if req.TokenBudget > 0 && usedTokens+tokens > req.TokenBudget {
			out.Truncated = true
			continue
		}
		usedChars += size
		usedTokens += tokens

		switch r.Item.Type {
		case TypeSnippet:
			out.Groups.Snippets = append(out.Groups.Snippets, r.Item)
		case TypeFact:
			out.Groups.Facts = append(out.Groups.Facts, r.Item)
		case TypePattern:
			out.Groups.Patterns = append(out.Groups.Patterns, r.Item)
		case TypeConfig:
			out.Groups.Configs = append(out.Groups.Configs, r.Item)
		}
	}
	return out, nil
}

// SetVector implements vectors.set: attaches or replaces id's embedding,
// which the query pipeline blends into BM25 results once present (spec
// §4.8/§6).
func (m *Manager) SetVector(ctx context.Context, id string, scope Scope, vector []float64) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		item.Vector = vector
		return nil
	})
}

// RemoveVector implements vectors.remove: detaches id's embedding, dropping
// it from both the catalog and the vector index.
func (m *Manager) RemoveVector(ctx context.Context, id string, scope Scope) (MemoryItem, error) {
	return m.mutateItem(ctx, id, scope, func(item *MemoryItem) error {
		item.Vector = nil
		return nil
	})
}

// sortSummariesByUpdatedDesc is a small shared helper for maintenance/
// migration-adjacent listings that want newest-first ordering without
// going through the scored query pipeline.
func sortSummariesByUpdatedDesc(sums []MemoryItemSummary) {
	sort.Slice(sums, func(i, j int) bool {
		if !sums[i].UpdatedAt.Equal(sums[j].UpdatedAt) {
			return sums[i].UpdatedAt.After(sums[j].UpdatedAt)
		}
		return sums[i].ID < sums[j].ID
	})
}
