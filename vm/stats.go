package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Stats counts interpreter activity. A snapshot can be exported as CBOR for
// external tooling.
type Stats struct {
	Bytecodes         uint64 `cbor:"bytecodes"`
	Sends             uint64 `cbor:"sends"`
	SuperSends        uint64 `cbor:"super_sends"`
	CacheHits         uint64 `cbor:"cache_hits"`
	CacheMisses       uint64 `cbor:"cache_misses"`
	MethodCalls       uint64 `cbor:"method_calls"`
	PrimitiveCalls    uint64 `cbor:"primitive_calls"`
	BlockCalls        uint64 `cbor:"block_calls"`
	NonLocalReturns   uint64 `cbor:"non_local_returns"`
	EscapedBlocks     uint64 `cbor:"escaped_blocks"`
	UnknownGlobals    uint64 `cbor:"unknown_globals"`
	DoesNotUnderstand uint64 `cbor:"does_not_understand"`
	FramesPushed      uint64 `cbor:"frames_pushed"`
	MaxCallDepth      uint64 `cbor:"max_call_depth"`
	ClassesLoaded     uint64 `cbor:"classes_loaded"`
}

// HitRate returns the inline cache hit rate as a percentage (0-100).
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) * 100 / float64(total)
}

var statsEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	statsEncMode = em
}

// EncodeStats serializes a stats snapshot to canonical CBOR.
func EncodeStats(s Stats) ([]byte, error) {
	return statsEncMode.Marshal(s)
}

// DecodeStats deserializes a stats snapshot from CBOR.
func DecodeStats(data []byte) (Stats, error) {
	var s Stats
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Stats{}, fmt.Errorf("vm: unmarshal stats: %w", err)
	}
	return s, nil
}
