package domain

// Retrieval defaults.
const (
	// DefaultMinSimilarity is the inclusive similarity floor for evidence.
	DefaultMinSimilarity = 0.55

	// DefaultTopK is the maximum number of evidence items per query.
	DefaultTopK = 8
)

// RetrievalOptions configures a similarity query.
type RetrievalOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// MinSimilarity excludes rows scoring below it before ranking.
	MinSimilarity float64
}

// DefaultRetrievalOptions returns the floor and cap used when none are configured.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		TopK:          DefaultTopK,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// Normalised fills zero fields with defaults.
func (o RetrievalOptions) Normalised() RetrievalOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinSimilarity == 0 {
		o.MinSimilarity = DefaultMinSimilarity
	}
	return o
}
