package domain

import "errors"

var (
	ErrOrderingViolation = errors.New("record stream is not chronologically ordered")
	ErrMissingContext    = errors.New("record is missing required context")
	ErrInvalidTimezone   = errors.New("invalid timezone identifier")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrUnmatchedLookup   = errors.New("no offset interval covers the record")
	ErrNoSettings        = errors.New("no pump settings available")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrMixedDeviceStream = errors.New("record stream spans multiple devices")
)
