package ili

import "math"

// hungarian solves the optimal defect assignment problem with the
// Kuhn–Munkres algorithm in O(n³), replacing a greedy nearest-similarity
// policy which can strand a better pairing downstream when two run-A
// defects compete for the same run-B defect.
//
// The cost matrix entry C[i][j] is 1 - similarity(A_i, B_j). Entries at
// or above assignForbidden are never selected.

const assignForbidden = 1e18 // Stand-in for infinity in the cost matrix

// hungarianAssign solves the rectangular assignment problem for an n×m
// cost matrix. It returns assign[i] = column assigned to row i, or -1
// when row i stays unassigned. For n > m the matrix is padded with
// forbidden columns so excess rows go unassigned.
func hungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		assign := make([]int, n)
		for i := range assign {
			assign[i] = -1
		}
		return assign
	}

	dim := n
	if m > dim {
		dim = m
	}

	// Padded square copy.
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = assignForbidden
			}
		}
	}

	// Kuhn-Munkres with potentials (Jonker-Volgenant variant),
	// 1-indexed internally for cleaner index arithmetic.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // Row potentials
	v := make([]float64, dim+1) // Column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column in augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0 // Virtual column

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim to original dimensions and drop forbidden assignments.
	assign := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] >= assignForbidden {
			assign[i] = -1
		} else {
			assign[i] = col
		}
	}

	return assign
}
