package domain

// Advisory codes shared by every device family. Vendor-prefixed variants
// come from the family strategy.
const (
	CodeUnknownDuration    = "basal/unknown-duration"
	CodeOffScheduleRate    = "basal/off-schedule-rate"
	CodeFabricatedDuration = "basal/fabricated-from-schedule"
	CodeFabricatedResume   = "status/fabricated-resume"
)

type Annotation struct {
	Code string `json:"code"`
}

// Annotate appends advisory codes to the event, keeping first-occurrence
// order and dropping codes already present.
func Annotate(ev *Event, codes ...string) {
	if ev == nil {
		return
	}
	ev.Annotations = appendCodes(ev.Annotations, codes...)
}

func HasAnnotation(ev *Event, code string) bool {
	if ev == nil {
		return false
	}
	for _, a := range ev.Annotations {
		if a.Code == code {
			return true
		}
	}

	return false
}

func appendCodes(list []Annotation, codes ...string) []Annotation {
	for _, code := range codes {
		if code == "" {
			continue
		}
		present := false
		for _, a := range list {
			if a.Code == code {
				present = true
				break
			}
		}
		if present {
			continue
		}
		list = append(list, Annotation{Code: code})
	}

	return list
}
