package domain

import "time"

// ReconciledSession is the canonical output of one upload: the ordered
// treatment history plus the counters describing how it was produced.
type ReconciledSession struct {
	SessionID   string    `json:"sessionId"`
	DeviceID    DeviceID  `json:"deviceId,omitempty"`
	Family      string    `json:"family"`
	Zone        string    `json:"timezone,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Events      []Event   `json:"events"`
	Stats       Stats     `json:"stats"`
}
