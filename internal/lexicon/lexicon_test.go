package lexicon

import "testing"

func TestLoadEmbeddedDefault(t *testing.T) {
	lex, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if lex.Version == "" {
		t.Fatal("expected a lexicon version")
	}
	if len(lex.Entries) == 0 {
		t.Fatal("expected entries in the default lexicon")
	}
}

func TestMatchRiskPhrase(t *testing.T) {
	lex, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	matched := lex.Match("I want to END my life", "en", CategoryRisk)
	if len(matched) == 0 {
		t.Fatal("expected a risk match for a case-folded phrase")
	}
	found := false
	for _, entry := range matched {
		if entry.Phrase == "end my life" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among matches, got %v", "end my life", matched)
	}
}

func TestMatchLanguageFilter(t *testing.T) {
	lex := &Lexicon{
		Version: "test",
		Entries: []Entry{
			{Phrase: "ghabrahat", Language: "hi", Category: CategoryRisk, Weight: 0.35},
			{Phrase: "suicide", Language: "*", Category: CategoryRisk, Weight: 0.8},
		},
	}

	if got := lex.Match("ghabrahat ho rahi hai", "en", CategoryRisk); len(got) != 0 {
		t.Fatalf("hi-only entry must not match en text, got %v", got)
	}
	if got := lex.Match("ghabrahat ho rahi hai", "hi", CategoryRisk); len(got) != 1 {
		t.Fatalf("expected hi entry to match hi text, got %v", got)
	}
	// Wildcard entries apply regardless of language.
	if got := lex.Match("suicide", "hi", CategoryRisk); len(got) != 1 {
		t.Fatalf("expected wildcard entry to match, got %v", got)
	}
	// No detected language applies language-tagged entries too.
	if got := lex.Match("ghabrahat", "", CategoryRisk); len(got) != 1 {
		t.Fatalf("expected match without detected language, got %v", got)
	}
}

func TestMatchEmptyText(t *testing.T) {
	lex, _ := Load("")
	if got := lex.Match("   ", "en", CategoryRisk); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}
