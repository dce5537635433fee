package tracker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLapjv(t *testing.T) {

	tests := []struct {
		name  string
		cost  [][]float64
		wantX []int
		wantY []int
	}{
		{
			name: "unique minimum",
			cost: [][]float64{
				{4, 1, 3, 2},
				{2, 0, 5, 3},
				{3, 2, 2, 3},
				{2, 3, 3, 2},
			},
			wantX: []int{3, 1, 2, 0},
			wantY: []int{3, 1, 2, 0},
		},
		{
			name: "shared column minimum",
			cost: [][]float64{
				{10, 19, 8, 15},
				{10, 18, 7, 17},
				{13, 16, 9, 14},
				{12, 19, 8, 18},
			},
			wantX: []int{3, 0, 1, 2},
			wantY: []int{1, 2, 3, 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			n := len(tc.cost)
			x := make([]int, n)
			y := make([]int, n)

			if err := lapjv(n, tc.cost, x, y); err != nil {
				t.Fatalf("lapjv failed: %v", err)
			}

			if diff := cmp.Diff(tc.wantX, x); diff != "" {
				t.Errorf("row assignment mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tc.wantY, y); diff != "" {
				t.Errorf("column assignment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type assignment struct {
	Matches       [][2]int
	UnmatchedRows []int
	UnmatchedCols []int
}

func assign(t *testing.T, cost [][]float64, rows, cols int, thresh float64) assignment {
	t.Helper()

	m, ur, uc, err := linearAssignment(cost, rows, cols, thresh)

	if err != nil {
		t.Fatalf("linear assignment failed: %v", err)
	}

	return assignment{m, ur, uc}
}

func TestLinearAssignmentGlobalMinimum(t *testing.T) {

	// picking the cheapest pair (1,0) first would force the dearer (0,1)
	cost := [][]float64{
		{0.125, 0.264},
		{0.070, 0.122},
	}

	got := assign(t, cost, 2, 2, 0.8)
	want := assignment{Matches: [][2]int{{0, 0}, {1, 1}}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestLinearAssignmentThreshold(t *testing.T) {

	cost := [][]float64{
		{0.2, 0.95},
		{0.9, 0.85},
	}

	got := assign(t, cost, 2, 2, 0.8)
	want := assignment{
		Matches:       [][2]int{{0, 0}},
		UnmatchedRows: []int{1},
		UnmatchedCols: []int{1},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestLinearAssignmentEmpty(t *testing.T) {

	got := assign(t, nil, 0, 3, 0.8)
	want := assignment{UnmatchedCols: []int{0, 1, 2}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("no rows mismatch (-want +got):\n%s", diff)
	}

	got = assign(t, [][]float64{{}, {}}, 2, 0, 0.8)
	want = assignment{UnmatchedRows: []int{0, 1}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("no cols mismatch (-want +got):\n%s", diff)
	}
}

// bestCost returns the lowest total cost over all partial matchings where
// each unmatched row and column costs thresh/2
func bestCost(cost [][]float64, row int, used []bool, thresh float64) float64 {

	if row == len(cost) {
		free := 0
		for _, u := range used {
			if !u {
				free++
			}
		}
		return float64(free) * thresh / 2
	}

	best := thresh/2 + bestCost(cost, row+1, used, thresh)

	for j, c := range cost[row] {
		if used[j] || c > thresh {
			continue
		}

		used[j] = true
		best = math.Min(best, c+bestCost(cost, row+1, used, thresh))
		used[j] = false
	}

	return best
}

func TestLinearAssignmentMatchesExhaustiveSearch(t *testing.T) {

	const thresh = 0.8
	rnd := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {

		rows := 1 + rnd.Intn(5)
		cols := 1 + rnd.Intn(5)
		cost := make([][]float64, rows)

		for i := range cost {
			cost[i] = make([]float64, cols)
			for j := range cost[i] {
				cost[i][j] = rnd.Float64()
			}
		}

		got := assign(t, cost, rows, cols, thresh)

		total := float64(len(got.UnmatchedRows)+len(got.UnmatchedCols)) * thresh / 2
		seen := make(map[int]bool)

		for _, m := range got.Matches {
			if seen[m[1]] {
				t.Fatalf("iteration %d column %d matched twice", iter, m[1])
			}
			seen[m[1]] = true
			total += cost[m[0]][m[1]]
		}

		if n := len(got.Matches) + len(got.UnmatchedRows); n != rows {
			t.Fatalf("iteration %d accounted for %d rows, want %d", iter, n, rows)
		}

		if n := len(got.Matches) + len(got.UnmatchedCols); n != cols {
			t.Fatalf("iteration %d accounted for %d cols, want %d", iter, n, cols)
		}

		want := bestCost(cost, 0, make([]bool, cols), thresh)

		if math.Abs(total-want) > 1e-9 {
			t.Fatalf("iteration %d cost %v, want %v for %v", iter, total, want, cost)
		}
	}
}

func TestRemoveDuplicates(t *testing.T) {

	kf := NewKalmanFilter(1.0/20, 1.0/160)

	mk := func(id int64, rect Rect, start, last int) *track {
		trk := newTrack(kf, NewObject(rect, 0, 0.9, id))
		trk.activate(start, id)
		trk.frameID = last
		return trk
	}

	older := mk(1, boxA, 1, 10)
	newer := mk(2, boxA, 8, 10)
	other := mk(3, boxB, 9, 10)
	shifted := mk(4, NewRect(101, 200, 40, 100), 2, 9)

	tests := []struct {
		name        string
		tracked     []*track
		lost        []*track
		wantTracked []int64
		wantLost    []int64
	}{
		{
			name:        "lost track outlived",
			tracked:     []*track{older, other},
			lost:        []*track{newer},
			wantTracked: []int64{1, 3},
			wantLost:    []int64{},
		},
		{
			name:        "tracked track outlived",
			tracked:     []*track{newer, other},
			lost:        []*track{shifted},
			wantTracked: []int64{3},
			wantLost:    []int64{4},
		},
		{
			name:        "no overlap",
			tracked:     []*track{other},
			lost:        []*track{older},
			wantTracked: []int64{3},
			wantLost:    []int64{1},
		},
	}

	trackIDs := func(tracks []*track) []int64 {
		out := []int64{}
		for _, trk := range tracks {
			out = append(out, trk.id)
		}
		return out
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			tracked, lost := removeDuplicates(tc.tracked, tc.lost)

			if diff := cmp.Diff(tc.wantTracked, trackIDs(tracked)); diff != "" {
				t.Errorf("tracked mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tc.wantLost, trackIDs(lost)); diff != "" {
				t.Errorf("lost mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
