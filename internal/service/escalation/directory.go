package escalation

import "strings"

// Directory resolves which institution, if any, a user belongs to. User and
// institution management live outside this core.
type Directory interface {
	InstitutionFor(userID string) (string, bool)
	Exists(institutionID string) bool
}

// MemoryDirectory implements Directory with a fixed membership map.
type MemoryDirectory struct {
	members      map[string]string
	institutions map[string]bool
}

// NewMemoryDirectory builds a directory from a user→institution map.
func NewMemoryDirectory(members map[string]string) *MemoryDirectory {
	institutions := make(map[string]bool)
	copied := make(map[string]string, len(members))
	for user, institution := range members {
		copied[user] = institution
		institutions[institution] = true
	}
	return &MemoryDirectory{members: copied, institutions: institutions}
}

// ParseMembers parses a "user=institution,user2=institution2" listing, the
// format of the INSTITUTION_DIRECTORY environment variable. Malformed pairs
// are skipped.
func ParseMembers(raw string) map[string]string {
	members := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		user, institution, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || user == "" || institution == "" {
			continue
		}
		members[user] = institution
	}
	return members
}

func (d *MemoryDirectory) InstitutionFor(userID string) (string, bool) {
	institution, ok := d.members[userID]
	return institution, ok
}

func (d *MemoryDirectory) Exists(institutionID string) bool {
	return d.institutions[institutionID]
}
