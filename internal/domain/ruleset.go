package domain

// StaticLists holds the hand-curated keyword vocabularies.
type StaticLists struct {
	PositiveKeywords []string `json:"positiveKeywords"`
	NegativeKeywords []string `json:"negativeKeywords"`
}

// CompiledRuleset is the artifact consumed by the downstream image filter.
type CompiledRuleset struct {
	Version         int64              `json:"version"`
	Weights         map[string]float64 `json:"weights"`
	StaticLists     StaticLists        `json:"lists"`
	LearnedPatterns []Pattern          `json:"learned"`
}
