package store

import (
	"encoding/hex"
	"testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestComputeDedupKeyStable(t *testing.T) {
	body := []byte(`{"planId":"p1","status":"completed"}`)
	if computeDedupKey(body) != computeDedupKey(body) {
		t.Fatalf("dedup key not stable for identical payloads")
	}
	other := []byte(`{"planId":"p2","status":"completed"}`)
	if computeDedupKey(body) == computeDedupKey(other) {
		t.Fatalf("distinct payloads produced the same dedup key")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty string -> nil expected, got %v", v)
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("non-empty string should pass through, got %v", v)
	}
}
