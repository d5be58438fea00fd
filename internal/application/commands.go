package application

import "github.com/medpipe/pump-history-cli/internal/domain"

// ReconcileOptions steers one session run. The zero value reconciles the
// whole stream in the timestamps the source declares and writes the
// result to the sink. Family and Zone override whatever the device
// registry knows.
type ReconcileOptions struct {
	DeviceID     domain.DeviceID
	Family       string
	Zone         string
	ApplyOffsets bool
	DryRun       bool
}

type OffsetOptions struct {
	DeviceID domain.DeviceID
	Zone     string
	Check    bool
}

type RegisterDeviceCommand struct {
	ID       domain.DeviceID
	Alias    string
	Family   string
	Timezone string
}
