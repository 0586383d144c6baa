package escalation

import (
	"time"

	"github.com/sahayata/saathi/backend/internal/model/crisis"
)

// Status tracks whether an institution user has acknowledged a record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
)

// Severity mirrors the originating risk level at creation time.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Record is a human-visible safety notification. At most one record may be
// created per user within the configured cooldown window.
type Record struct {
	ID            string            `json:"id"`
	InstitutionID string            `json:"institutionId,omitempty"`
	UserID        string            `json:"userId"`
	Severity      Severity          `json:"severity"`
	RiskScore     float64           `json:"riskScore"`
	RiskLevel     crisis.Level      `json:"riskLevel"`
	Reason        string            `json:"reason"`
	Status        Status            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}
