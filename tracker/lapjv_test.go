package tracker

import (
	"testing"
)

func runLapjvCase(t *testing.T, cost [][]float64, expectedX, expectedY []int) {

	t.Helper()

	n := len(cost)
	x := make([]int, n)
	y := make([]int, n)

	if err := lapjvInternal(n, cost, x, y); err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	for i := 0; i < n; i++ {

		if x[i] != expectedX[i] {
			t.Errorf("expected x[%d] = %d, got %d", i, expectedX[i], x[i])
		}

		if y[i] != expectedY[i] {
			t.Errorf("expected y[%d] = %d, got %d", i, expectedY[i], y[i])
		}
	}
}

func TestLapjvInternal(t *testing.T) {

	runLapjvCase(t,
		[][]float64{
			{4, 1, 3, 2},
			{2, 0, 5, 3},
			{3, 2, 2, 3},
			{2, 3, 3, 2},
		},
		[]int{3, 1, 2, 0},
		[]int{3, 1, 2, 0})

	runLapjvCase(t,
		[][]float64{
			{10, 19, 8, 15},
			{10, 18, 7, 17},
			{13, 16, 9, 14},
			{12, 19, 8, 18},
		},
		[]int{3, 0, 1, 2},
		[]int{1, 2, 3, 0})
}