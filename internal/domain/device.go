package domain

import (
	"fmt"
	"strings"
	"time"
)

type DeviceID string

// Device is a registry entry for a known pump: its vendor family selects
// annotation namespaces, and an optional home timezone seeds offset
// resolution when the caller does not name one.
type Device struct {
	ID       DeviceID
	Alias    string
	Family   string
	Timezone string
}

func (d Device) Validate() error {
	if strings.TrimSpace(string(d.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", d.Timezone)
		}
	}

	return nil
}
