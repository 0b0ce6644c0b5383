package internaldefs

import (
	"slices"
	"strings"
	"testing"
)

func TestBoundLabels(t *testing.T) {
	want := []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}
	if got := BoundLabels(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := BoundSuffixes(); got[0] != "0_005" || got[len(got)-1] != "inf" {
		t.Fatalf("unexpected suffixes %v", got)
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDefinitionNamesUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	for _, d := range CounterDefs {
		if seen[d.Name] || !strings.HasSuffix(d.Name, "_total") {
			t.Fatalf("bad counter name %q", d.Name)
		}
		seen[d.Name] = true
	}
	for _, d := range HistogramDefs {
		if seen[d.Name] || !strings.HasSuffix(d.Name, "_seconds") {
			t.Fatalf("bad histogram name %q", d.Name)
		}
		seen[d.Name] = true
	}
}
