package privacy

import "time"

// Flags are per-user sharing switches. Zero value must not be used directly;
// Defaults() gives the default-true semantics.
type Flags struct {
	UserID            string `json:"userId"`
	ShareMood         bool   `json:"shareMood"`
	ShareConversation bool   `json:"shareConversation"`
}

// Defaults returns the default-true flags for a user.
func Defaults(userID string) Flags {
	return Flags{UserID: userID, ShareMood: true, ShareConversation: true}
}

// Outcome of a privacy-gated access check.
type Outcome string

const (
	OutcomePermitted Outcome = "permitted"
	OutcomeDenied    Outcome = "denied"
)

// AccessLogEntry records one privacy-gated read, written synchronously with
// the check regardless of outcome.
type AccessLogEntry struct {
	ActorID   string            `json:"actorId"`
	SubjectID string            `json:"subjectId"`
	Resource  string            `json:"resource"`
	Action    string            `json:"action"`
	Outcome   Outcome           `json:"outcome"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
