package crisis

import "time"

// Level is the discrete risk bucket derived from a continuous score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Assessment is the outcome of scoring one inbound utterance. Produced once,
// never mutated.
type Assessment struct {
	UserID          string    `json:"userId"`
	Score           float64   `json:"score"`
	Level           Level     `json:"riskLevel"`
	MatchedPatterns []string  `json:"matchedPatterns"`
	CreatedAt       time.Time `json:"createdAt"`
}

// LevelFor buckets a score using the supplied thresholds.
func LevelFor(score, mediumThreshold, highThreshold float64) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}
