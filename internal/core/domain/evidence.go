package domain

// EvidenceItem is one retrieved passage grounding an answer.
// Produced fresh per query and never persisted.
type EvidenceItem struct {
	// ID is the stored row identifier. Internal, never sent to clients.
	ID string `json:"-"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Similarity is 1 - cosine distance to the query vector.
	Similarity float64 `json:"similarity"`

	// SourceURL is the locator of the document the chunk came from.
	SourceURL string `json:"sourceUrl"`
}

// DedupeBySource collapses items sharing a SourceURL, keeping the first
// occurrence. Rank order of the kept items is preserved.
// The input is expected to be sorted by descending similarity already.
func DedupeBySource(items []EvidenceItem) []EvidenceItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]EvidenceItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.SourceURL]; ok {
			continue
		}
		seen[item.SourceURL] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SourcePositions maps each item to the position of its source in
// DedupeBySource(items), so a citation of any passage can be numbered by
// the deduplicated source list.
func SourcePositions(items []EvidenceItem) []int {
	first := make(map[string]int, len(items))
	positions := make([]int, len(items))
	for i, item := range items {
		pos, ok := first[item.SourceURL]
		if !ok {
			pos = len(first)
			first[item.SourceURL] = pos
		}
		positions[i] = pos
	}
	return positions
}
