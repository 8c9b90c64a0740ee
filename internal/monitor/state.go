package monitor

import (
	"time"

	"safeguard/internal/analysis"
	"safeguard/internal/config"
	"safeguard/internal/notify"
)

// State is the orchestrator's position in the incident lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateSampling  State = "sampling"
	StateAnalyzing State = "analyzing"
	StateConfirmed State = "confirmed"
	StateAlerting  State = "alerting"
	StateSettling  State = "settling"
)

// AlertAttempt is the single outbound attempt of the current incident.
// The two channel outcomes are independent of each other.
type AlertAttempt struct {
	Reason    string        `json:"reason"`
	Result    notify.Result `json:"result"`
	Done      bool          `json:"done"`
	StartedAt time.Time     `json:"startedAt"`
}

// IncidentRecord is one completed detection-to-reset cycle.
type IncidentRecord struct {
	ID         string        `json:"id"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Result     notify.Result `json:"result"`
	StartedAt  time.Time     `json:"startedAt"`
	SettledAt  time.Time     `json:"settledAt"`
}

// SessionView is the read-only projection of the session configuration.
type SessionView struct {
	Contact          string      `json:"contact"`
	Sender           string      `json:"sender"`
	Mode             config.Mode `json:"mode"`
	SampleIntervalMs int64       `json:"sampleIntervalMs"`
}

func viewOf(s config.Session) SessionView {
	return SessionView{
		Contact:          s.Contact,
		Sender:           s.Sender,
		Mode:             s.Mode,
		SampleIntervalMs: s.SampleInterval.Milliseconds(),
	}
}

// Snapshot is the observable state pushed to any presentation layer.
type Snapshot struct {
	State      State             `json:"state"`
	Verdict    *analysis.Verdict `json:"verdict,omitempty"`
	Attempt    *AlertAttempt     `json:"attempt,omitempty"`
	Session    SessionView       `json:"session"`
	IncidentID string            `json:"incidentId,omitempty"`
	Generation uint64            `json:"generation"`
}
