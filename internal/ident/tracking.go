package ident

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// TrackingHash fingerprints an item's token stream for change detection.
// It is deliberately independent of identity: an item whose body changed
// keeps its ID but gets a new tracking hash, and two cfg-gated duplicates
// that collide on one ID are only a validation error when their tracking
// hashes differ.
type TrackingHash struct {
	Hi, Lo uint64
}

// HashTokens computes the tracking hash over a normalized token stream.
// Tokens are separated by a unit byte so that ["ab","c"] and ["a","bc"]
// hash differently.
func HashTokens(tokens []string) TrackingHash {
	h := xxh3.New()
	for _, tok := range tokens {
		_, _ = h.WriteString(tok)
		_, _ = h.Write([]byte{0x1f})
	}
	sum := h.Sum128()
	return TrackingHash{Hi: sum.Hi, Lo: sum.Lo}
}

// HashBytes fingerprints raw file content, used for file-level change
// detection.
func HashBytes(data []byte) TrackingHash {
	sum := xxh3.Hash128(data)
	return TrackingHash{Hi: sum.Hi, Lo: sum.Lo}
}

func (h TrackingHash) String() string {
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

func (h TrackingHash) IsZero() bool { return h.Hi == 0 && h.Lo == 0 }
