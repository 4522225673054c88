package connreg

import (
	"errors"
	"testing"

	"netextract/internal/deeplayer"
)

func TestConnectRejectsUnpersisted(t *testing.T) {
	r := New()
	if err := r.Connect(deeplayer.LayerID(0)); !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("expected ErrNotPersisted, got %v", err)
	}
}

func TestConnectIdempotent(t *testing.T) {
	r := New()
	r.MarkPersisted(0)
	r.MarkPersisted(1)
	if err := r.ConnectPair(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := r.ConnectPair(0, 1); err != nil {
		t.Fatal(err)
	}
	pairs := r.ConnectedPairs()
	if len(pairs) != 1 {
		t.Fatalf("expected idempotent edge insertion, got %v", pairs)
	}
}

func TestConnectCommutative(t *testing.T) {
	r1 := New()
	r1.MarkPersisted(0)
	r1.MarkPersisted(1)
	_ = r1.ConnectPair(0, 1)

	r2 := New()
	r2.MarkPersisted(0)
	r2.MarkPersisted(1)
	_ = r2.ConnectPair(1, 0)

	if len(r1.ConnectedPairs()) != len(r2.ConnectedPairs()) {
		t.Fatalf("expected commutative connect results")
	}
	if r1.ConnectedPairs()[0] != r2.ConnectedPairs()[0] {
		t.Fatalf("expected identical canonical edges")
	}
}

func TestGlobalNetIDRoundTrip(t *testing.T) {
	r := New()
	r.MarkPersisted(0)
	id, err := r.ConnectGlobal(0, "GND")
	if err != nil {
		t.Fatal(err)
	}
	if r.GlobalNetName(id) != "GND" {
		t.Fatalf("expected round trip, got %q", r.GlobalNetName(id))
	}
	if r.GlobalNetID("GND") != id {
		t.Fatalf("expected stable id allocation for repeated name")
	}
}

func TestFreezeRejectsMutators(t *testing.T) {
	r := New()
	r.MarkPersisted(0)
	r.Freeze()
	if err := r.Connect(0); !errors.Is(err, ErrExtracted) {
		t.Fatalf("expected ErrExtracted after freeze, got %v", err)
	}
	if _, err := r.ConnectGlobal(0, "GND"); !errors.Is(err, ErrExtracted) {
		t.Fatalf("expected ErrExtracted after freeze, got %v", err)
	}
}
