package mood

import (
	"strings"

	"github.com/sahayata/saathi/backend/internal/lexicon"
	moodmodel "github.com/sahayata/saathi/backend/internal/model/mood"
)

// Decision is the keyword analyzer's verdict for one utterance.
type Decision struct {
	Label      moodmodel.Label
	Intensity  int
	Confidence float64
	Matches    int
}

// Analyze infers mood from lexicon keyword matches. It is the fallback path
// when the classifier is unavailable; confidence stays deliberately low.
// Simultaneous positive and negative indicators yield the mixed label.
func Analyze(lex *lexicon.Lexicon, utterance, language string) Decision {
	normalized := strings.TrimSpace(utterance)
	if normalized == "" {
		return Decision{Label: moodmodel.Neutral, Intensity: 3, Confidence: 0.3}
	}

	positive := lex.Match(normalized, language, lexicon.CategoryMoodPositive)
	negative := lex.Match(normalized, language, lexicon.CategoryMoodNegative)

	total := len(positive) + len(negative)
	if total == 0 {
		return Decision{Label: moodmodel.Neutral, Intensity: 3, Confidence: 0.3}
	}

	intensity := 3 + 2*total
	if intensity > 10 {
		intensity = 10
	}
	confidence := 0.45 + 0.1*float64(total)
	if confidence > 0.75 {
		confidence = 0.75
	}

	if len(positive) > 0 && len(negative) > 0 {
		return Decision{Label: moodmodel.Mixed, Intensity: intensity, Confidence: confidence, Matches: total}
	}

	var label moodmodel.Label
	if len(positive) > 0 {
		label = dominantLabel(positive, moodmodel.Happy)
	} else {
		label = dominantLabel(negative, moodmodel.Sad)
	}

	exclamations := strings.Count(utterance, "!")
	if exclamations > 0 && intensity < 10 {
		intensity++
	}

	return Decision{Label: label, Intensity: intensity, Confidence: confidence, Matches: total}
}

// dominantLabel picks the most frequent entry label on one side of the
// positive/negative split.
func dominantLabel(entries []lexicon.Entry, fallback moodmodel.Label) moodmodel.Label {
	counts := make(map[moodmodel.Label]int)
	for _, entry := range entries {
		if label, ok := moodmodel.ParseLabel(entry.Label); ok {
			counts[label]++
		}
	}

	best := fallback
	bestCount := 0
	for label, count := range counts {
		if count > bestCount {
			best = label
			bestCount = count
		}
	}
	return best
}
