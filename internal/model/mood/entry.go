package mood

import "time"

// Label classifies the emotional content of an utterance.
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Anxious Label = "anxious"
	Angry   Label = "angry"
	Calm    Label = "calm"
	// Mixed marks simultaneous positive and negative indicators; the
	// inferencer must not arbitrarily pick one side.
	Mixed Label = "mixed"
)

// ParseLabel maps free-form classifier output onto a known label.
func ParseLabel(raw string) (Label, bool) {
	switch Label(raw) {
	case Neutral, Happy, Sad, Anxious, Angry, Calm, Mixed:
		return Label(raw), true
	default:
		return "", false
	}
}

// Inference is a mood candidate produced for one utterance. Applied indicates
// whether it was persisted as an Entry.
type Inference struct {
	Label      Label   `json:"label"`
	Intensity  int     `json:"intensity"`
	Confidence float64 `json:"confidence"`
	Applied    bool    `json:"applied"`
}

// Entry is a persisted mood observation for an authenticated user.
type Entry struct {
	UserID     string    `json:"userId"`
	Label      Label     `json:"label"`
	Intensity  int       `json:"intensity"`
	Confidence float64   `json:"confidence"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
