package videostore

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/frameindex"
	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/qrcodec"
	"github.com/andreahaku/llm-memory-mcp/internal/videocodec"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	consolidatedIndexName = "consolidated-index.json"
	catalogName            = "catalog.json"
	defaultFPS             = 30
	defaultKeyframeGap     = 30
	enqueueWaitTimeout     = 30 * time.Second
)

// Store is the video-backed memory.Adapter implementation. It queues
// puts for background batching and encodes each flushed batch into one MP4
// segment plus a matching .mvi frame index.
type Store struct {
	dir    string
	paths  segmentPaths
	prober *videocodec.Prober

	idGen *hashutil.IDGenerator

	mu           sync.RWMutex
	catalog      map[string]memory.MemoryItemSummary
	consolidated map[string]memory.PayloadRef // contentHash -> ref

	payloadCache *PayloadCache
	frameCache   *FrameCache

	queue *EncodeQueue
}

// Open mounts a scope's video store at dir. It does not fail if ffmpeg is
// unavailable; callers should check Available before routing writes here
// (spec §4.3/§4.6: the video back-end is optional).
func Open(ctx context.Context, dir string, prober *videocodec.Prober) (*Store, error) {
	if err := os.MkdirAll(newSegmentPaths(dir).SegmentsDir(), 0o755); err != nil {
		return nil, err
	}
	if prober == nil {
		prober = videocodec.DefaultProber()
	}

	catalog, err := loadSummaries(joinDir(dir, catalogName))
	if err != nil {
		return nil, err
	}
	consolidated, err := loadConsolidated(joinDir(dir, consolidatedIndexName))
	if err != nil {
		return nil, err
	}

	payloadCache, err := NewPayloadCache(ctx)
	if err != nil {
		return nil, err
	}
	frameCache, err := NewFrameCache(256)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:          dir,
		paths:        newSegmentPaths(dir),
		prober:       prober,
		idGen:        hashutil.NewIDGenerator(),
		catalog:      catalog,
		consolidated: consolidated,
		payloadCache: payloadCache,
		frameCache:   frameCache,
	}
	s.queue = NewEncodeQueue(DefaultQueuePolicy(), s.flushBatch)
	return s, nil
}

func joinDir(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}

// Put implements memory.Adapter. An item whose content hash is
// already committed in another segment is deduplicated immediately;
// otherwise it is queued for the next encode batch and this call blocks
// until that batch commits (spec §4.6).
func (s *Store) Put(ctx context.Context, item memory.MemoryItem) (memory.PayloadRef, error) {
	hash, err := item.ContentHash()
	if err != nil {
		return memory.PayloadRef{}, err
	}

	s.mu.RLock()
	if ref, ok := s.consolidated[hash.String()]; ok {
		s.mu.RUnlock()
		s.commitCatalogEntry(item, ref)
		return ref, nil
	}
	s.mu.RUnlock()

	done, err := s.queue.Enqueue(item, hash)
	if err != nil {
		return memory.PayloadRef{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, enqueueWaitTimeout)
	defer cancel()

	select {
	case res := <-done:
		if res.err != nil {
			return memory.PayloadRef{}, res.err
		}
		return res.ref, nil
	case <-waitCtx.Done():
		return memory.PayloadRef{}, memory.ErrBackpressure
	}
}

func (s *Store) commitCatalogEntry(item memory.MemoryItem, ref memory.PayloadRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[item.ID] = item.Summary(ref)
	_ = saveSummaries(joinDir(s.dir, catalogName), s.catalog)
}

// flushBatch is the EncodeQueue's FlushFunc: it renders every item's body
// to QR frames, concatenates them into one new segment, commits the MP4 +
// .mvi pair, and updates the consolidated content-hash index.
func (s *Store) flushBatch(ctx context.Context, items []memory.MemoryItem) (map[string]memory.PayloadRef, error) {
	if !s.prober.Available(ctx) {
		return nil, memory.ErrDependencyMissing
	}

	segmentID := s.idGen.New()
	var allFrames []*image.RGBA
	type itemRange struct {
		hash               hashutil.ContentHash
		start, end         uint32
	}
	ranges := make([]itemRange, 0, len(items))
	writer := frameindex.NewWriter(defaultFPS, defaultKeyframeGap)

	for _, item := range items {
		hash, err := item.ContentHash()
		if err != nil {
			return nil, err
		}
		body, err := item.CanonicalBody().CanonicalJSON()
		if err != nil {
			return nil, err
		}
		frames, err := qrcodec.Encode(body, qrcodec.DefaultOptions())
		if err != nil {
			return nil, err
		}

		start := uint32(len(allFrames))
		for i, f := range frames {
			idx := uint32(len(allFrames))
			pts := uint64(idx) * 1000 / uint64(defaultFPS)
			var hashPrefix uint64
			if i == 0 {
				hashPrefix = hashPrefixOf(hash)
				writer.Append(frameindex.NewKeyframeEntry(idx, pts, hashPrefix))
			} else {
				writer.Append(frameindex.NewFrameEntry(idx, pts))
			}
			allFrames = append(allFrames, f)
		}
		end := uint32(len(allFrames) - 1)
		ranges = append(ranges, itemRange{hash: hash, start: start, end: end})
	}

	if len(allFrames) == 0 {
		return map[string]memory.PayloadRef{}, nil
	}

	if err := videocodec.Encode(ctx, allFrames, s.paths.MP4(segmentID), videocodec.DefaultEncodeOptions()); err != nil {
		return nil, err
	}
	if err := writer.Commit(s.paths.Index(segmentID)); err != nil {
		return nil, err
	}

	refs := make(map[string]memory.PayloadRef, len(items))
	s.mu.Lock()
	for i, item := range items {
		r := ranges[i]
		ref := memory.PayloadRef{ContentHash: r.hash, SegmentID: segmentID, FrameStart: r.start, FrameEnd: r.end, Size: uint32(len(item.Text) + len(item.Code) + len(item.Title))}
		s.consolidated[r.hash.String()] = ref
		s.catalog[item.ID] = item.Summary(ref)
		refs[item.ID] = ref
	}
	err := saveConsolidated(joinDir(s.dir, consolidatedIndexName), s.consolidated)
	if err == nil {
		err = saveSummaries(joinDir(s.dir, catalogName), s.catalog)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func hashPrefixOf(h hashutil.ContentHash) uint64 {
	b, ok := h.Bytes()
	if !ok {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// GetBody implements memory.Adapter, reconstructing a body from its
// video frame range, using the payload cache to skip re-decoding hot items.
func (s *Store) GetBody(ctx context.Context, ref memory.PayloadRef) (hashutil.CanonicalBody, error) {
	if !ref.IsVideoRef() {
		return hashutil.CanonicalBody{}, memory.ErrInvalidInput
	}
	if raw, ok := s.payloadCache.Get(ref.ContentHash); ok {
		return decodeCanonicalBody(raw)
	}

	idxReader, err := frameindex.Open(s.paths.Index(ref.SegmentID))
	if err != nil {
		return hashutil.CanonicalBody{}, fmt.Errorf("videostore: open index: %w", err)
	}
	defer idxReader.Close()

	opts := videocodec.ExtractOptions{FPS: defaultFPS, FrameWidth: qrcodec.DefaultOptions().FrameSize, FrameHeight: qrcodec.DefaultOptions().FrameSize}
	frames := make([]image.Image, 0, ref.FrameEnd-ref.FrameStart+1)
	for i := ref.FrameStart; i <= ref.FrameEnd; i++ {
		if cached, ok := s.frameCache.Get(ref.SegmentID, i); ok {
			frames = append(frames, cached)
			continue
		}
		img, err := videocodec.ExtractFrame(ctx, s.paths.MP4(ref.SegmentID), i, opts)
		if err != nil {
			return hashutil.CanonicalBody{}, err
		}
		s.frameCache.Put(ref.SegmentID, i, img)
		frames = append(frames, img)
	}

	raw, err := qrcodec.Decode(frames)
	if err != nil {
		return hashutil.CanonicalBody{}, err
	}
	_ = s.payloadCache.Put(ref.ContentHash, raw)
	return decodeCanonicalBody(raw)
}

func decodeCanonicalBody(raw []byte) (hashutil.CanonicalBody, error) {
	var body hashutil.CanonicalBody
	if err := jsonAPI.Unmarshal(raw, &body); err != nil {
		return hashutil.CanonicalBody{}, memory.ErrDecodeError
	}
	return body, nil
}

// Delete implements memory.Adapter. The frame range stays physically
// present until compaction (spec §3 invariant 6).
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.catalog[id]
	if !ok {
		return memory.ErrNotFound
	}
	sum.Tombstoned = true
	s.catalog[id] = sum
	return saveSummaries(joinDir(s.dir, catalogName), s.catalog)
}

// Catalog implements memory.Adapter.
func (s *Store) Catalog(ctx context.Context) ([]memory.MemoryItemSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]memory.MemoryItemSummary, 0, len(s.catalog))
	for _, sum := range s.catalog {
		if !sum.Tombstoned {
			out = append(out, sum)
		}
	}
	return out, nil
}

// Get implements memory.Adapter.
func (s *Store) Get(ctx context.Context, id string) (memory.MemoryItemSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.catalog[id]
	if !ok || sum.Tombstoned {
		return memory.MemoryItemSummary{}, false, nil
	}
	return sum, true, nil
}

// Backend implements memory.Adapter.
func (s *Store) Backend() memory.Backend { return memory.BackendVideo }

// Compact implements memory.Compactor. A full compaction would rewrite each
// segment omitting tombstoned frame ranges and renumber the survivors (spec
// §4.10 compaction step 3); this drops the cheaper, safe half of that work —
// permanently forgetting tombstoned catalog entries and any consolidated
// content-hash entry no other live item still points at — without touching
// segment bytes on disk, so existing frame offsets for live items never
// need renumbering.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	liveHashes := make(map[string]struct{}, len(s.catalog))
	for id, sum := range s.catalog {
		if sum.Tombstoned {
			delete(s.catalog, id)
			continue
		}
		liveHashes[sum.Payload.ContentHash.String()] = struct{}{}
	}
	for hash := range s.consolidated {
		if _, live := liveHashes[hash]; !live {
			delete(s.consolidated, hash)
		}
	}

	if err := saveSummaries(joinDir(s.dir, catalogName), s.catalog); err != nil {
		return err
	}
	return saveConsolidated(joinDir(s.dir, consolidatedIndexName), s.consolidated)
}

// Close stops the background encode worker.
func (s *Store) Close() error {
	s.queue.Close()
	return nil
}

func loadSummaries(path string) (map[string]memory.MemoryItemSummary, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return make(map[string]memory.MemoryItemSummary), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var items map[string]memory.MemoryItemSummary
	if err := jsonAPI.NewDecoder(bufio.NewReader(f)).Decode(&items); err != nil {
		return nil, err
	}
	if items == nil {
		items = make(map[string]memory.MemoryItemSummary)
	}
	return items, nil
}

func saveSummaries(path string, items map[string]memory.MemoryItemSummary) error {
	return atomicWriteJSON(path, items)
}

func loadConsolidated(path string) (map[string]memory.PayloadRef, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return make(map[string]memory.PayloadRef), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]memory.PayloadRef
	if err := jsonAPI.NewDecoder(bufio.NewReader(f)).Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]memory.PayloadRef)
	}
	return m, nil
}

func saveConsolidated(path string, m map[string]memory.PayloadRef) error {
	return atomicWriteJSON(path, m)
}

func atomicWriteJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := jsonAPI.NewEncoder(bw).Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
