package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("entry")

	first := gen.Next()
	second := gen.Next()

	if first != "entry-1" || second != "entry-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if issued := gen.Issued(); len(issued) != 2 || issued[1] != "entry-2" {
		t.Fatalf("unexpected issued list %v", issued)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("schedule")
	_ = gen.Next()
	gen.Reset("sch")

	if next := gen.Next(); next != "sch-1" {
		t.Fatalf("expected sch-1 after reset, got %q", next)
	}
	if issued := gen.Issued(); len(issued) != 1 {
		t.Fatalf("expected reset to clear issued ids, got %v", issued)
	}
}
