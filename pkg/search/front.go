package search

// Dominates reports whether cost vector a dominates b: a is less than or
// equal to b in every component and strictly less in at least one. Both
// vectors must have the same length.
func Dominates(a, b []float64) bool {
	strict := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strict = true
		}
	}
	return strict
}

// dominatesOrEqual reports whether a is less than or equal to b in every
// component. Used for pruning: a candidate matched exactly by an existing
// label adds nothing to the front.
func dominatesOrEqual(a, b []float64) bool {
	for i := range a {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}

// lexLess compares two cost vectors lexicographically. It is the
// deterministic tie-break used when the frontier ordering key is equal and
// the sort key for the returned front.
func lexLess(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
