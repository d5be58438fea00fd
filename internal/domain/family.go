package domain

import "strings"

// DeviceFamily carries the vendor-specific annotation namespace. Strategies
// are stateless and injected into the reconciler; nothing branches on a
// vendor tag inline.
type DeviceFamily interface {
	Name() string
	OffScheduleRateCode() string
	FabricatedDurationCode() string
	FabricatedResumeCode() string
}

var (
	Insulet DeviceFamily = insuletFamily{}
	Generic DeviceFamily = genericFamily{}
)

// FamilyFor maps a registry family tag to its strategy. Unknown tags fall
// back to the generic namespace.
func FamilyFor(name string) DeviceFamily {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "insulet", "omnipod":
		return Insulet
	default:
		return Generic
	}
}

type insuletFamily struct{}

func (insuletFamily) Name() string { return "insulet" }

func (insuletFamily) OffScheduleRateCode() string { return "insulet/basal/off-schedule-rate" }

func (insuletFamily) FabricatedDurationCode() string {
	return "insulet/basal/fabricated-from-schedule"
}

func (insuletFamily) FabricatedResumeCode() string { return "insulet/status/fabricated-resume" }

type genericFamily struct{}

func (genericFamily) Name() string { return "generic" }

func (genericFamily) OffScheduleRateCode() string { return CodeOffScheduleRate }

func (genericFamily) FabricatedDurationCode() string { return CodeFabricatedDuration }

func (genericFamily) FabricatedResumeCode() string { return CodeFabricatedResume }
