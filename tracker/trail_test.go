package tracker

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrail(t *testing.T) {

	trail := NewTrail(3)

	for y := 0; y < 5; y++ {
		trail.Add([]Observation{{ID: 1, Center: image.Pt(10, y)}})
	}

	trail.Add([]Observation{{ID: 2, Center: image.Pt(50, 50)}})

	want := []image.Point{{10, 2}, {10, 3}, {10, 4}}

	if diff := cmp.Diff(want, trail.Points(1)); diff != "" {
		t.Errorf("trail mismatch (-want +got):\n%s", diff)
	}

	if trail.Points(99) != nil {
		t.Errorf("expected no history for unknown id")
	}

	trail.Prune([]Observation{{ID: 2}})

	if trail.Len() != 1 || trail.Points(1) != nil {
		t.Errorf("expected only id 2 after prune, got %d tracks", trail.Len())
	}

	trail.Reset()

	if trail.Len() != 0 {
		t.Errorf("expected empty trail after reset")
	}
}
