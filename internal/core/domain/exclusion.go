package domain

import "strings"

// ExclusionKind selects how an ExclusionRule matches a file name.
type ExclusionKind string

// Available exclusion kinds.
const (
	// ExcludePrefix matches file names starting with the pattern.
	ExcludePrefix ExclusionKind = "prefix"

	// ExcludeContains matches file names containing the pattern.
	ExcludeContains ExclusionKind = "contains"
)

// ExclusionRule removes non-content files from an ingestion run.
// Rules match the base file name only, never the directory.
type ExclusionRule struct {
	// Kind is the match strategy.
	Kind ExclusionKind

	// Pattern is the literal text to match.
	Pattern string

	// Reason is shown in the ingest report for skipped files.
	Reason string
}

// Matches reports whether the rule excludes the given base file name.
func (r ExclusionRule) Matches(name string) bool {
	if r.Pattern == "" {
		return false
	}
	switch r.Kind {
	case ExcludePrefix:
		return strings.HasPrefix(name, r.Pattern)
	case ExcludeContains:
		return strings.Contains(name, r.Pattern)
	default:
		return false
	}
}

// DefaultExclusionRules returns the rules for index and listing pages
// that carry no article content.
func DefaultExclusionRules() []ExclusionRule {
	return []ExclusionRule{
		{Kind: ExcludePrefix, Pattern: "topic", Reason: "archive/topic index"},
		{Kind: ExcludePrefix, Pattern: "author", Reason: "author page"},
		{Kind: ExcludePrefix, Pattern: "podcastepisodes", Reason: "podcast episode listing"},
		{Kind: ExcludeContains, Pattern: "job-board", Reason: "job board listing"},
	}
}

// FirstMatch returns the first rule that excludes name.
func FirstMatch(rules []ExclusionRule, name string) (ExclusionRule, bool) {
	for _, r := range rules {
		if r.Matches(name) {
			return r, true
		}
	}
	return ExclusionRule{}, false
}
