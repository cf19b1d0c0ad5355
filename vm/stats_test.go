package vm

import (
	"bytes"
	"testing"
)

func TestStatsCBOR(t *testing.T) {
	s := Stats{
		Bytecodes:     1234,
		Sends:         100,
		CacheHits:     90,
		CacheMisses:   10,
		EscapedBlocks: 1,
		MaxCallDepth:  17,
	}

	data, err := EncodeStats(s)
	if err != nil {
		t.Fatalf("EncodeStats: %v", err)
	}
	again, err := EncodeStats(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("canonical encoding is not deterministic")
	}

	got, err := DecodeStats(data)
	if err != nil {
		t.Fatalf("DecodeStats: %v", err)
	}
	if got != s {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

func TestDecodeStatsRejectsGarbage(t *testing.T) {
	if _, err := DecodeStats([]byte{0xff, 0x00}); err == nil {
		t.Error("expected an error")
	}
}

func TestStatsHitRate(t *testing.T) {
	if rate := (Stats{}).HitRate(); rate != 0 {
		t.Errorf("empty HitRate = %v, want 0", rate)
	}
	if rate := (Stats{CacheHits: 3, CacheMisses: 1}).HitRate(); rate != 75 {
		t.Errorf("HitRate = %v, want 75", rate)
	}
}
