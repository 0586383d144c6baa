package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category tags what an entry indicates.
type Category string

const (
	CategoryRisk         Category = "risk"
	CategoryMoodPositive Category = "mood-positive"
	CategoryMoodNegative Category = "mood-negative"
)

// Entry is one phrase in the lexicon. Weight only applies to risk entries;
// Label only applies to mood entries.
type Entry struct {
	Phrase   string   `yaml:"phrase"`
	Language string   `yaml:"language"`
	Category Category `yaml:"category"`
	Weight   float64  `yaml:"weight,omitempty"`
	Label    string   `yaml:"label,omitempty"`
}

// Lexicon is the versioned phrase table. Read-only after Load; safe for
// concurrent use without synchronization.
type Lexicon struct {
	Version string  `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

//go:embed default.yaml
var defaultResource []byte

// Load reads the lexicon from path, or the embedded default when path is
// empty.
func Load(path string) (*Lexicon, error) {
	raw := defaultResource
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", path, err)
		}
		raw = data
	}

	lex := &Lexicon{}
	if err := yaml.Unmarshal(raw, lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(lex.Entries) == 0 {
		return nil, fmt.Errorf("lexicon has no entries")
	}

	for i, entry := range lex.Entries {
		if strings.TrimSpace(entry.Phrase) == "" {
			return nil, fmt.Errorf("lexicon entry %d has empty phrase", i)
		}
		if entry.Category == CategoryRisk && (entry.Weight <= 0 || entry.Weight > 1) {
			return nil, fmt.Errorf("risk entry %q has weight %v outside (0,1]", entry.Phrase, entry.Weight)
		}
	}

	return lex, nil
}

// Match returns every entry of the given category whose phrase occurs in
// text. Matching is case-folded substring; entries tagged language "*" apply
// to every language, others only when the language matches or none was
// detected.
func (l *Lexicon) Match(text, language string, category Category) []Entry {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	var matched []Entry
	for _, entry := range l.Entries {
		if entry.Category != category {
			continue
		}
		if entry.Language != "*" && language != "" && entry.Language != language {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(entry.Phrase)) {
			matched = append(matched, entry)
		}
	}
	return matched
}
