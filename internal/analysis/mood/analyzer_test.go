package mood

import (
	"testing"

	"github.com/sahayata/saathi/backend/internal/lexicon"
	moodmodel "github.com/sahayata/saathi/backend/internal/model/mood"
)

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	return lex
}

func TestAnalyzeSadUtterance(t *testing.T) {
	decision := Analyze(testLexicon(t), "I feel so sad and lonely today", "en")
	if decision.Label != moodmodel.Sad {
		t.Fatalf("expected sad, got %s", decision.Label)
	}
	if decision.Intensity < 1 || decision.Intensity > 10 {
		t.Fatalf("intensity out of range: %d", decision.Intensity)
	}
}

func TestAnalyzeMixedSignals(t *testing.T) {
	decision := Analyze(testLexicon(t), "I'm happy about the job but so anxious about moving", "en")
	if decision.Label != moodmodel.Mixed {
		t.Fatalf("expected mixed for simultaneous signals, got %s", decision.Label)
	}
}

func TestAnalyzeNeutralWhenNoMatches(t *testing.T) {
	decision := Analyze(testLexicon(t), "what time does the office open", "en")
	if decision.Label != moodmodel.Neutral {
		t.Fatalf("expected neutral, got %s", decision.Label)
	}
	if decision.Confidence >= 0.6 {
		t.Fatalf("fallback neutral confidence should stay below the auto-apply floor, got %f", decision.Confidence)
	}
}

func TestAnalyzeHindiKeywords(t *testing.T) {
	decision := Analyze(testLexicon(t), "bahut udaas hoon", "hi")
	if decision.Label != moodmodel.Sad {
		t.Fatalf("expected sad for hi keyword, got %s", decision.Label)
	}
}
