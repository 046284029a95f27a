package health

// CorpusSizer reports the size of the loaded corpus.
type CorpusSizer interface {
	Len() int
}
