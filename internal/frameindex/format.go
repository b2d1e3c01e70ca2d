// Package frameindex implements the .mvi binary frame index (C4, spec
// §4.4): a sorted, fixed-width entry table mapping a video segment's logical
// frame numbers to their presentation timestamp and nearest keyframe, so
// C3's extractor can seek accurately without scanning the whole container.
// The binary layout and binary-search lookup style are grounded on
// compactindexsized's magic+version header and sort.Find-based entry
// lookup.
package frameindex

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a .mvi file; chosen distinct from compactindexsized's own
// magic so the two binary formats are never confused by a stray open.
var Magic = [8]byte{'M', 'V', 'I', 'D', 'X', 'V', '0', '1'}

// Version is the current .mvi format version.
const Version = uint8(1)

const (
	headerSize = 32
	entrySize  = 24
)

// Header is the fixed 32-byte .mvi preamble.
type Header struct {
	Version          uint8
	EntryCount       uint32
	FPS              uint32
	KeyframeInterval uint32
}

func (h Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], Magic[:])
	buf[8] = h.Version
	binary.LittleEndian.PutUint32(buf[12:16], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.FPS)
	binary.LittleEndian.PutUint32(buf[20:24], h.KeyframeInterval)
	return buf
}

func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("frameindex: truncated header (%d bytes)", len(buf))
	}
	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != Magic {
		return Header{}, fmt.Errorf("frameindex: bad magic")
	}
	version := buf[8]
	if version != Version {
		return Header{}, fmt.Errorf("frameindex: unsupported version %d, want %d", version, Version)
	}
	return Header{
		Version:          version,
		EntryCount:       binary.LittleEndian.Uint32(buf[12:16]),
		FPS:              binary.LittleEndian.Uint32(buf[16:20]),
		KeyframeInterval: binary.LittleEndian.Uint32(buf[20:24]),
	}, nil
}

const (
	flagKeyframe uint32 = 1 << 0
)

// Entry is one fixed 24-byte record: a frame number, its PTS in
// milliseconds, whether it is a keyframe, and the first 8 bytes of the
// content hash whose payload range starts at this frame (0 for
// continuation frames mid-range).
type Entry struct {
	FrameIndex        uint32
	Flags             uint32
	PTSMillis         uint64
	ContentHashPrefix uint64
}

// IsKeyframe reports whether this frame is independently decodable.
func (e Entry) IsKeyframe() bool { return e.Flags&flagKeyframe != 0 }

func (e Entry) marshal() []byte {
	buf := make([]byte, entrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.FrameIndex)
	binary.LittleEndian.PutUint32(buf[4:8], e.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], e.PTSMillis)
	binary.LittleEndian.PutUint64(buf[16:24], e.ContentHashPrefix)
	return buf
}

func unmarshalEntry(buf []byte) Entry {
	return Entry{
		FrameIndex:        binary.LittleEndian.Uint32(buf[0:4]),
		Flags:             binary.LittleEndian.Uint32(buf[4:8]),
		PTSMillis:         binary.LittleEndian.Uint64(buf[8:16]),
		ContentHashPrefix: binary.LittleEndian.Uint64(buf[16:24]),
	}
}

// NewKeyframeEntry builds an Entry with the keyframe flag set.
func NewKeyframeEntry(frameIndex uint32, ptsMillis uint64, contentHashPrefix uint64) Entry {
	return Entry{FrameIndex: frameIndex, Flags: flagKeyframe, PTSMillis: ptsMillis, ContentHashPrefix: contentHashPrefix}
}

// NewFrameEntry builds a non-keyframe Entry.
func NewFrameEntry(frameIndex uint32, ptsMillis uint64) Entry {
	return Entry{FrameIndex: frameIndex, PTSMillis: ptsMillis}
}
