package match

// Classify reports whether a line with the given per-word counts contributes
// to the result.
//
// A line where exactly one word occurs is always kept. With allWords set, a
// line where every word occurs is kept as well. Any other combination,
// including a line with no occurrences, is dropped.
func Classify(counts []int, allWords bool) bool {
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	if present == 1 {
		return true
	}
	return allWords && present > 0 && present == len(counts)
}
