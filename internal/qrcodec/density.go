package qrcodec

import "github.com/skip2/go-qrcode"

// ECCLevel is the QR error-correction level (spec §4.2).
type ECCLevel string

const (
	ECCLow      ECCLevel = "L" // ~7% recovery
	ECCMedium   ECCLevel = "M" // ~15% recovery (default)
	ECCQuartile ECCLevel = "Q" // ~25% recovery
	ECCHigh     ECCLevel = "H" // ~30% recovery
)

func (e ECCLevel) toLibrary() qrcode.RecoveryLevel {
	switch e {
	case ECCLow:
		return qrcode.Low
	case ECCQuartile:
		return qrcode.High // library's "High" const is ~25%; see capacity table below for the real byte budget
	case ECCHigh:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// densityTable approximates the maximum byte capacity of a QR symbol at
// version 40 (the largest symbol, 177x177 modules) for each ECC level, in
// 8-bit byte mode. Frame rendering picks the version automatically from the
// chunk size; this table only drives the encode-time "how big can a chunk
// be" decision so chunking stays within a single QR symbol's capacity.
var densityTable = map[ECCLevel]int{
	ECCLow:      2953,
	ECCMedium:   2331,
	ECCQuartile: 1663,
	ECCHigh:     1273,
}

// DefaultECC is the spec §4.2 default.
const DefaultECC = ECCMedium

// CompressionThreshold is the minimum relative size reduction gzip must
// achieve for the compressed form to be used (spec §4.2: "if gzip(bytes) is
// smaller by >= 10%, compress").
const CompressionThreshold = 0.10

// MaxChunkPayload returns the maximum number of payload bytes (after the
// 16-byte chunk header is subtracted) a single QR frame at the given ECC
// level can hold.
func MaxChunkPayload(level ECCLevel) int {
	cap := densityTable[level]
	if cap == 0 {
		cap = densityTable[DefaultECC]
	}
	return cap - headerSize
}
