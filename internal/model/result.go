package model

// SimilarityMatch is one vector-store hit. Score is cosine similarity in
// [-1, 1].
type SimilarityMatch struct {
	PropertyID string  `json:"property_id"`
	Score      float64 `json:"score"`
}

// ScoreBreakdown exposes the fusion inputs for a ranked result.
type ScoreBreakdown struct {
	FilterBoost float64 `json:"filter_boost"`
	Similarity  float64 `json:"similarity"`
}

// RankedResult is one entry of the fused result list. Lists are always
// sorted by FinalScore descending with the tie-break chain guaranteeing a
// total order, so Rank is stable across identical invocations.
type RankedResult struct {
	PropertyID string         `json:"property_id"`
	FinalScore float64        `json:"final_score"`
	Breakdown  ScoreBreakdown `json:"score_breakdown"`
	Rank       int            `json:"rank"`
}
