package tracker

import (
	"errors"
	"fmt"
)

// large is the initial value of column minimums
const large = 1000000.0

// lapjv solves the dense square linear assignment problem for the n x n cost
// matrix using the Jonker-Volgenant algorithm.  On return x[i] holds the
// column assigned to row i and y[j] the row assigned to column j.
func lapjv(n int, cost [][]float64, x, y []int) error {

	freeRows := make([]int, n)
	v := make([]float64, n)

	free := ccrrtDense(n, cost, freeRows, x, y, v)

	for i := 0; free > 0 && i < 2; i++ {
		free = carrDense(n, cost, free, freeRows, x, y, v)
	}

	if free > 0 {
		if err := caDense(n, cost, free, freeRows, x, y, v); err != nil {
			return err
		}
	}

	return nil
}

// ccrrtDense performs column reduction and reduction transfer, returning
// the number of rows left unassigned
func ccrrtDense(n int, cost [][]float64, freeRows, x, y []int, v []float64) int {

	unique := make([]bool, n)

	for i := 0; i < n; i++ {
		x[i] = -1
		v[i] = large
		y[i] = 0
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := cost[i][j]; c < v[j] {
				v[j] = c
				y[j] = i
			}
		}
	}

	for i := 0; i < n; i++ {
		unique[i] = true
	}

	for j := n - 1; j >= 0; j-- {
		i := y[j]
		if x[i] < 0 {
			x[i] = j
		} else {
			unique[i] = false
			y[j] = -1
		}
	}

	nFree := 0

	for i := 0; i < n; i++ {

		if x[i] < 0 {
			freeRows[nFree] = i
			nFree++
			continue
		}

		if !unique[i] {
			continue
		}

		j := x[i]
		minVal := large

		for j2 := 0; j2 < n; j2++ {
			if j2 == j {
				continue
			}

			if c := cost[i][j2] - v[j2]; c < minVal {
				minVal = c
			}
		}

		v[j] -= minVal
	}

	return nFree
}

// carrDense performs augmenting row reduction, returning the number of rows
// still unassigned
func carrDense(n int, cost [][]float64, nFree int, freeRows,
	x, y []int, v []float64) int {

	current := 0
	newFree := 0
	rrCnt := 0

	for current < nFree {

		rrCnt++
		freeI := freeRows[current]
		current++

		// lowest and second lowest reduced costs of the row
		j1 := 0
		v1 := cost[freeI][0] - v[0]
		j2 := -1
		v2 := large

		for j := 1; j < n; j++ {
			c := cost[freeI][j] - v[j]
			if c < v2 {
				if c >= v1 {
					v2 = c
					j2 = j
				} else {
					v2 = v1
					v1 = c
					j2 = j1
					j1 = j
				}
			}
		}

		i0 := y[j1]
		v1New := v[j1] - (v2 - v1)
		v1Lowers := v1New < v[j1]

		if rrCnt < current*n {
			if v1Lowers {
				v[j1] = v1New
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = y[j2]
			}

			if i0 >= 0 {
				if v1Lowers {
					current--
					freeRows[current] = i0
				} else {
					freeRows[newFree] = i0
					newFree++
				}
			}
		} else if i0 >= 0 {
			freeRows[newFree] = i0
			newFree++
		}

		x[freeI] = j1
		y[j1] = freeI
	}

	return newFree
}

// findDense moves the columns with the minimum d to the SCAN list
func findDense(n int, lo int, d []float64, cols []int) int {

	hi := lo + 1
	mind := d[cols[lo]]

	for k := hi; k < n; k++ {

		j := cols[k]

		if d[j] <= mind {
			if d[j] < mind {
				hi = lo
				mind = d[j]
			}

			cols[k] = cols[hi]
			cols[hi] = j
			hi++
		}
	}

	return hi
}

// scanDense lowers d of the TODO columns through the SCAN columns, returning
// an unassigned column when one is reached or -1
func scanDense(n int, cost [][]float64, lo, hi *int, d []float64,
	cols, pred, y []int, v []float64) int {

	for *lo != *hi {

		j := cols[*lo]
		*lo++
		i := y[j]
		mind := d[j]
		h := cost[i][j] - v[j] - mind

		for k := *hi; k < n; k++ {
			j = cols[k]
			cred := cost[i][j] - v[j] - h

			if cred < d[j] {
				d[j] = cred
				pred[j] = i

				if cred == mind {
					if y[j] < 0 {
						return j
					}

					cols[k] = cols[*hi]
					cols[*hi] = j
					*hi++
				}
			}
		}
	}

	return -1
}

// findPathDense runs one shortest augmenting path search from startI and
// returns the unassigned column it ends at
func findPathDense(n int, cost [][]float64, startI int, y []int, v []float64,
	pred []int) int {

	lo, hi := 0, 0
	finalJ := -1
	nReady := 0
	cols := make([]int, n)
	d := make([]float64, n)

	for i := 0; i < n; i++ {
		cols[i] = i
		pred[i] = startI
		d[i] = cost[startI][i] - v[i]
	}

	for finalJ == -1 {
		// SCAN list is empty
		if lo == hi {
			nReady = lo
			hi = findDense(n, lo, d, cols)

			for k := lo; k < hi; k++ {
				if j := cols[k]; y[j] < 0 {
					finalJ = j
				}
			}
		}

		if finalJ == -1 {
			finalJ = scanDense(n, cost, &lo, &hi, d, cols, pred, y, v)
		}
	}

	mind := d[cols[lo]]

	for k := 0; k < nReady; k++ {
		j := cols[k]
		v[j] += d[j] - mind
	}

	return finalJ
}

// caDense augments the solution along a shortest path for each free row
func caDense(n int, cost [][]float64, nFree int, freeRows,
	x, y []int, v []float64) error {

	pred := make([]int, n)

	for _, freeI := range freeRows[:nFree] {

		j := findPathDense(n, cost, freeI, y, v, pred)

		if j < 0 || j >= n {
			return fmt.Errorf("augmenting path ended at invalid column %d", j)
		}

		for i, k := -1, 0; i != freeI; k++ {
			if k >= n {
				return errors.New("augmenting path longer than matrix")
			}

			i = pred[j]
			y[j] = i
			j, x[i] = x[i], j
		}
	}

	return nil
}

// linearAssignment finds the minimum cost matching of the rows x cols cost
// matrix.  The matrix is extended so every row and column may instead be
// left unmatched at a cost of thresh/2, which keeps pairs costing more than
// thresh out of the solution.
func linearAssignment(cost [][]float64, rows, cols int,
	thresh float64) (matches [][2]int, unmatchedRows, unmatchedCols []int, err error) {

	if rows == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			unmatchedRows = append(unmatchedRows, i)
		}
		for j := 0; j < cols; j++ {
			unmatchedCols = append(unmatchedCols, j)
		}
		return nil, unmatchedRows, unmatchedCols, nil
	}

	n := rows + cols
	ext := make([][]float64, n)

	for i := range ext {
		ext[i] = make([]float64, n)

		for j := range ext[i] {
			switch {
			case i < rows && j < cols:
				ext[i][j] = cost[i][j]
			case i >= rows && j >= cols:
				ext[i][j] = 0
			default:
				ext[i][j] = thresh / 2
			}
		}
	}

	x := make([]int, n)
	y := make([]int, n)

	if err := lapjv(n, ext, x, y); err != nil {
		return nil, nil, nil, fmt.Errorf("linear assignment failed: %w", err)
	}

	matchedCol := make([]bool, cols)

	for i := 0; i < rows; i++ {
		if j := x[i]; j >= 0 && j < cols && cost[i][j] <= thresh {
			matches = append(matches, [2]int{i, j})
			matchedCol[j] = true
		} else {
			unmatchedRows = append(unmatchedRows, i)
		}
	}

	for j, ok := range matchedCol {
		if !ok {
			unmatchedCols = append(unmatchedCols, j)
		}
	}

	return matches, unmatchedRows, unmatchedCols, nil
}
