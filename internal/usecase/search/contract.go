package search

// Index is the read contract over the corpus index.
type Index interface {
	Find(query string) ([]int, error)
	Preview(pos, radius int) string
}
