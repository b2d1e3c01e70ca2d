// Package memory implements the Memory Manager (C10): the orchestrator that
// routes upserts/queries to a storage back-end, keeps the inverted and
// vector indices in sync, applies the confidence/ranking pipeline, and
// schedules maintenance. See SPEC_FULL.md §4.10.
package memory

import (
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
)

// ItemType enumerates the kinds of memory spec §3 recognizes.
type ItemType string

const (
	TypeSnippet ItemType = "snippet"
	TypePattern ItemType = "pattern"
	TypeConfig  ItemType = "config"
	TypeInsight ItemType = "insight"
	TypeRunbook ItemType = "runbook"
	TypeFact    ItemType = "fact"
	TypeNote    ItemType = "note"
)

// Scope is a directory-separated namespace for items.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeLocal     Scope = "local"
	ScopeCommitted Scope = "committed"
)

// ScopePriority returns the resolution priority used when a caller asks for
// an item without specifying a scope: committed > local > global (spec §4.10).
func ScopePriority(s Scope) int {
	switch s {
	case ScopeCommitted:
		return 3
	case ScopeLocal:
		return 2
	case ScopeGlobal:
		return 1
	default:
		return 0
	}
}

// ScopeResolutionOrder lists scopes from highest to lowest priority for get().
var ScopeResolutionOrder = []Scope{ScopeCommitted, ScopeLocal, ScopeGlobal}

// Sensitivity classifies how an item may be shared.
type Sensitivity string

const (
	SensitivityPublic  Sensitivity = "public"
	SensitivityTeam    Sensitivity = "team"
	SensitivityPrivate Sensitivity = "private"
)

// Relation is the kind of edge between two items.
type Relation string

const (
	RelationRefines    Relation = "refines"
	RelationDuplicates Relation = "duplicates"
	RelationDepends    Relation = "depends"
	RelationFixes      Relation = "fixes"
	RelationRelates    Relation = "relates"
)

// Link is a directed edge from an item to targetID.
type Link struct {
	TargetID string   `json:"targetId"`
	Relation Relation `json:"relation"`
}

// Facets are the free-form classification sets attached to an item.
type Facets struct {
	Tags    []string `json:"tags,omitempty"`
	Files   []string `json:"files,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// Context is the provenance of an item within a repository.
type Context struct {
	RepoID string `json:"repoId,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	File   string `json:"file,omitempty"`
	Range  string `json:"range,omitempty"`
	Tool   string `json:"tool,omitempty"`
}

// Quality holds confidence and usage-feedback signals (spec §3, §4.9).
type Quality struct {
	Confidence      float64    `json:"confidence"`
	ReuseCount      int        `json:"reuseCount"`
	Pinned          bool       `json:"pinned,omitempty"`
	TTLDays         *int       `json:"ttlDays,omitempty"`
	HelpfulCount    int        `json:"helpfulCount"`
	NotHelpfulCount int        `json:"notHelpfulCount"`
	DecayedUsage    float64    `json:"decayedUsage"`
	LastAccessedAt  *time.Time `json:"lastAccessedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	LastFeedbackAt  *time.Time `json:"lastFeedbackAt,omitempty"`
}

// Security holds sensitivity classification and redacted-secret references.
type Security struct {
	Sensitivity    Sensitivity          `json:"sensitivity"`
	SecretHashRefs []hashutil.ContentHash `json:"secretHashRefs,omitempty"`
}

// MemoryItem is the canonical record (spec §3).
type MemoryItem struct {
	ID       string `json:"id"`
	Type     ItemType `json:"type"`
	Scope    Scope    `json:"scope"`
	Title    string   `json:"title,omitempty"`
	Text     string   `json:"text,omitempty"`
	Code     string   `json:"code,omitempty"`
	Language string   `json:"language,omitempty"`

	Facets   Facets   `json:"facets"`
	Context  Context  `json:"context"`
	Quality  Quality  `json:"quality"`
	Security Security `json:"security"`
	Links    []Link   `json:"links,omitempty"`

	// Vector is an optional precomputed embedding for hybrid search (C8).
	// It never participates in content hashing: two items with identical
	// text but different embeddings are still the same content.
	Vector []float64 `json:"vector,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// CanonicalBody extracts the fields that participate in content hashing.
func (m *MemoryItem) CanonicalBody() hashutil.CanonicalBody {
	return hashutil.CanonicalBody{
		Title:    m.Title,
		Text:     m.Text,
		Code:     m.Code,
		Type:     string(m.Type),
		Language: m.Language,
	}
}

// ContentHash computes the item's content hash per spec §3.
func (m *MemoryItem) ContentHash() (hashutil.ContentHash, error) {
	return hashutil.HashBody(m.CanonicalBody())
}

// PayloadRef locates where an item's body lives (spec §3).
type PayloadRef struct {
	ContentHash hashutil.ContentHash `json:"contentHash"`
	SegmentID   string               `json:"segmentId"`
	FrameStart  uint32               `json:"frameStart"`
	FrameEnd    uint32               `json:"frameEnd"`
	Size        uint32               `json:"size"`
}

// IsVideoRef reports whether the ref points into a video segment rather
// than a plain file-store item.
func (p PayloadRef) IsVideoRef() bool {
	return p.SegmentID != ""
}

// MemoryItemSummary is the catalog entry: a MemoryItem without body fields,
// plus a PayloadRef.
type MemoryItemSummary struct {
	ID       string   `json:"id"`
	Type     ItemType `json:"type"`
	Scope    Scope    `json:"scope"`
	Title    string   `json:"title,omitempty"`
	Language string   `json:"language,omitempty"`

	Facets   Facets   `json:"facets"`
	Context  Context  `json:"context"`
	Quality  Quality  `json:"quality"`
	Security Security `json:"security"`
	Links    []Link   `json:"links,omitempty"`

	// Vector travels with the summary rather than the body: it never
	// participates in content hashing, so keeping it here lets the vector
	// index be rebuilt straight from the catalog without decoding bodies.
	Vector []float64 `json:"vector,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`

	Payload PayloadRef `json:"payload"`

	// Tombstoned marks an item deleted at the catalog level while its video
	// frame range remains physically present until compaction (spec §3
	// invariant 6).
	Tombstoned bool `json:"tombstoned,omitempty"`
}

// Summary reduces a full item to its catalog summary given where its body
// was (or will be) stored.
func (m *MemoryItem) Summary(ref PayloadRef) MemoryItemSummary {
	return MemoryItemSummary{
		ID: m.ID, Type: m.Type, Scope: m.Scope, Title: m.Title, Language: m.Language,
		Facets: m.Facets, Context: m.Context, Quality: m.Quality, Security: m.Security,
		Links: m.Links, Vector: m.Vector, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt, Version: m.Version,
		Payload: ref,
	}
}

// Hydrate merges a decoded body back into a catalog summary to reconstruct
// the full MemoryItem (spec §4.6 step 5).
func Hydrate(sum MemoryItemSummary, body hashutil.CanonicalBody) MemoryItem {
	return MemoryItem{
		ID: sum.ID, Type: sum.Type, Scope: sum.Scope,
		Title: body.Title, Text: body.Text, Code: body.Code, Language: body.Language,
		Facets: sum.Facets, Context: sum.Context, Quality: sum.Quality, Security: sum.Security,
		Links: sum.Links, Vector: sum.Vector, CreatedAt: sum.CreatedAt, UpdatedAt: sum.UpdatedAt, Version: sum.Version,
	}
}

// TTLEligibleForPrune reports whether the item's TTL has expired as of now
// (spec §3 lifecycle: updatedAt + ttlDays < now).
func (s MemoryItemSummary) TTLEligibleForPrune(now time.Time) bool {
	if s.Quality.TTLDays == nil {
		return false
	}
	deadline := s.UpdatedAt.AddDate(0, 0, *s.Quality.TTLDays)
	return deadline.Before(now)
}
