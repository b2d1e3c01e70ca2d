package frameindex

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/exp/mmap"
)

// Reader provides read-only, binary-search access to a committed .mvi file.
// It prefers an mmap-backed ReaderAt (golang.org/x/exp/mmap) and falls back
// to buffered os.File.ReadAt on platforms or filesystems where mmap fails,
// per SPEC_FULL.md §4.4's implementation note.
type Reader struct {
	header Header
	size   int64

	mm   *mmap.ReaderAt
	file *os.File
}

// Open opens and validates a .mvi file's header.
func Open(path string) (*Reader, error) {
	r := &Reader{}

	if mm, err := mmap.Open(path); err == nil {
		r.mm = mm
		r.size = mm.Len()
	} else {
		f, ferr := os.Open(path)
		if ferr != nil {
			return nil, fmt.Errorf("frameindex: open %s: %w", path, ferr)
		}
		info, serr := f.Stat()
		if serr != nil {
			f.Close()
			return nil, serr
		}
		r.file = f
		r.size = info.Size()
	}

	hdr := make([]byte, headerSize)
	if _, err := r.readAt(hdr, 0); err != nil {
		r.Close()
		return nil, fmt.Errorf("frameindex: read header: %w", err)
	}
	h, err := unmarshalHeader(hdr)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.header = h

	if err := r.validateSize(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readAt(buf []byte, off int64) (int, error) {
	if r.mm != nil {
		return r.mm.ReadAt(buf, off)
	}
	return r.file.ReadAt(buf, off)
}

func (r *Reader) validateSize() error {
	want := int64(headerSize) + int64(r.header.EntryCount)*int64(entrySize)
	if r.size != want {
		return fmt.Errorf("frameindex: size mismatch: header claims %d entries (%d bytes), file is %d bytes",
			r.header.EntryCount, want, r.size)
	}
	return nil
}

// Validate re-checks the header's declared entry count against the file's
// actual size, surfacing truncation or a corrupt header even if Open
// otherwise succeeded (spec §4.4: "validate on load and before serving").
func (r *Reader) Validate() error { return r.validateSize() }

// Header returns the parsed .mvi header.
func (r *Reader) Header() Header { return r.header }

// Close releases the underlying mmap or file handle.
func (r *Reader) Close() error {
	if r.mm != nil {
		return r.mm.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func (r *Reader) entryAt(i int) (Entry, error) {
	buf := make([]byte, entrySize)
	off := int64(headerSize) + int64(i)*int64(entrySize)
	if _, err := r.readAt(buf, off); err != nil {
		return Entry{}, err
	}
	return unmarshalEntry(buf), nil
}

// Lookup finds the entry with exactly the given frame index, if present.
func (r *Reader) Lookup(frameIndex uint32) (Entry, bool, error) {
	n := int(r.header.EntryCount)
	var found bool
	var readErr error
	i, ok := sort.Find(n, func(i int) int {
		e, err := r.entryAt(i)
		if err != nil {
			readErr = err
			return 0
		}
		return int(frameIndex) - int(e.FrameIndex)
	})
	if readErr != nil {
		return Entry{}, false, readErr
	}
	if !ok || i >= n {
		return Entry{}, false, nil
	}
	e, err := r.entryAt(i)
	if err != nil {
		return Entry{}, false, err
	}
	found = e.FrameIndex == frameIndex
	return e, found, nil
}

// FindNearestKeyframe returns the keyframe entry at or before frameIndex,
// so extraction can fast-seek to it and decode forward (spec §4.4,
// consumed by C3's off-by-one seek guard).
func (r *Reader) FindNearestKeyframe(frameIndex uint32) (Entry, bool, error) {
	n := int(r.header.EntryCount)
	if n == 0 {
		return Entry{}, false, nil
	}

	var readErr error
	i, _ := sort.Find(n, func(i int) int {
		e, err := r.entryAt(i)
		if err != nil {
			readErr = err
			return 0
		}
		return int(frameIndex) - int(e.FrameIndex)
	})
	if readErr != nil {
		return Entry{}, false, readErr
	}
	if i >= n {
		i = n - 1
	}

	for ; i >= 0; i-- {
		e, err := r.entryAt(i)
		if err != nil {
			return Entry{}, false, err
		}
		if e.FrameIndex > frameIndex {
			continue
		}
		if e.IsKeyframe() {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// EntryCount reports how many entries the index holds.
func (r *Reader) EntryCount() int { return int(r.header.EntryCount) }
