package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Family discriminates the raw record union. Exactly one payload field on
// Record is set for a given family.
type Family string

const (
	FamilySMBG          Family = "smbg"
	FamilyBolus         Family = "bolus"
	FamilyTermination   Family = "bolusTermination"
	FamilyWizard        Family = "wizard"
	FamilyAlarm         Family = "alarm"
	FamilyReservoir     Family = "reservoirChange"
	FamilyStatus        Family = "status"
	FamilyTimeChange    Family = "timeChange"
	FamilySettings      Family = "pumpSettings"
	FamilyBasal         Family = "basal"
	FamilyPodActivation Family = "podActivation"
)

const localTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a zone-less device wall-clock timestamp. The wall fields are
// carried in the UTC frame internally so arithmetic against offsets stays
// plain time.Time math.
type LocalTime struct {
	time.Time
}

func ParseLocalTime(s string) (LocalTime, error) {
	t, err := time.ParseInLocation(localTimeLayout, s, time.UTC)
	if err != nil {
		return LocalTime{}, fmt.Errorf("parse local time %q: %w", s, ErrInvalidTimestamp)
	}

	return LocalTime{Time: t}, nil
}

func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{Time: t.UTC()}
}

func (t LocalTime) String() string {
	return t.Format(localTimeLayout)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(localTimeLayout))
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

type Record struct {
	ID                 string    `json:"id,omitempty"`
	Family             Family    `json:"type"`
	Time               time.Time `json:"time"`
	DeviceTime         LocalTime `json:"deviceTime"`
	TimezoneOffsetMin  int       `json:"timezoneOffset"`
	CorrectionOffsetMS int64     `json:"correctionOffset,omitempty"`
	DeviceID           string    `json:"deviceId"`
	Index              *int64    `json:"index,omitempty"`

	SMBG          *SMBGPayload          `json:"smbg,omitempty"`
	Bolus         *BolusPayload         `json:"bolus,omitempty"`
	Termination   *TerminationPayload   `json:"termination,omitempty"`
	Wizard        *WizardPayload        `json:"wizard,omitempty"`
	Alarm         *AlarmPayload         `json:"alarm,omitempty"`
	Reservoir     *ReservoirPayload     `json:"reservoirChange,omitempty"`
	Status        *StatusPayload        `json:"status,omitempty"`
	TimeChange    *TimeChangePayload    `json:"timeChange,omitempty"`
	Settings      *SettingsPayload      `json:"pumpSettings,omitempty"`
	Basal         *BasalPayload         `json:"basal,omitempty"`
	PodActivation *PodActivationPayload `json:"podActivation,omitempty"`
}

type SMBGPayload struct {
	Value float64 `json:"value"`
	Units string  `json:"units,omitempty"`
}

type BolusSubType string

const (
	BolusImmediate BolusSubType = "immediate"
	BolusExtended  BolusSubType = "extended"
	BolusCombined  BolusSubType = "combined"
)

// BolusPayload keeps declared volumes as pointers: a pure extended dose has
// no immediate volume at all, which is not the same as an immediate volume
// of zero. The Expected fields are written only by termination matching.
type BolusPayload struct {
	SubType            BolusSubType `json:"subType"`
	Normal             *float64     `json:"normal,omitempty"`
	Extended           *float64     `json:"extended,omitempty"`
	DurationMS         *int64       `json:"duration,omitempty"`
	ExpectedNormal     *float64     `json:"expectedNormal,omitempty"`
	ExpectedExtended   *float64     `json:"expectedExtended,omitempty"`
	ExpectedDurationMS *int64       `json:"expectedDuration,omitempty"`
}

type TerminationPayload struct {
	Missed              float64 `json:"missed"`
	RemainingDurationMS int64   `json:"remainingDuration"`
}

type WizardRecommendation struct {
	Carb       float64 `json:"carb,omitempty"`
	Correction float64 `json:"correction,omitempty"`
	Net        float64 `json:"net,omitempty"`
}

type WizardPayload struct {
	CarbInput      *float64              `json:"carbInput,omitempty"`
	BGInput        *float64              `json:"bgInput,omitempty"`
	InsulinOnBoard *float64              `json:"insulinOnBoard,omitempty"`
	Recommended    *WizardRecommendation `json:"recommended,omitempty"`
	Bolus          *BolusPayload         `json:"bolus,omitempty"`
}

type AlarmPayload struct {
	Kind          string         `json:"kind"`
	StopsDelivery bool           `json:"stopsDelivery,omitempty"`
	Status        *StatusPayload `json:"status,omitempty"`
}

type ReservoirPayload struct {
	Status *StatusPayload `json:"status,omitempty"`
}

type StatusKind string

const (
	StatusSuspended StatusKind = "suspended"
	StatusResumed   StatusKind = "resumed"
)

type StatusPayload struct {
	Kind       StatusKind `json:"kind"`
	Reason     string     `json:"reason,omitempty"`
	DurationMS *int64     `json:"duration,omitempty"`
}

type TimeChangePayload struct {
	From  LocalTime `json:"from"`
	To    LocalTime `json:"to"`
	Agent string    `json:"agent,omitempty"`
}

type SettingsPayload struct {
	ActiveSchedule string                     `json:"activeSchedule"`
	Schedules      map[string][]ScheduleEntry `json:"schedules"`
	Units          string                     `json:"units,omitempty"`
}

type DeliveryKind string

const (
	DeliveryScheduled DeliveryKind = "scheduled"
	DeliveryTemp      DeliveryKind = "temp"
	DeliverySuspend   DeliveryKind = "suspend"
)

type BasalPayload struct {
	DeliveryKind DeliveryKind  `json:"deliveryKind"`
	Rate         float64       `json:"rate"`
	Percent      *float64      `json:"percent,omitempty"`
	DurationMS   *int64        `json:"duration,omitempty"`
	ScheduleName string        `json:"scheduleName,omitempty"`
	Suppressed   *BasalPayload `json:"suppressed,omitempty"`
}

type PodActivationPayload struct {
	Status *StatusPayload `json:"status,omitempty"`
	Lot    string         `json:"lot,omitempty"`
}

func ptrTo[T any](v T) *T {
	return &v
}

func cloneOf[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p

	return &v
}

func orZero[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}

	return *p
}

// clone returns an owned deep copy of the record: payloads and boxed scalars
// are reallocated so mutating the copy never shows through the original.
func (r Record) clone() Record {
	r.Index = cloneOf(r.Index)
	r.SMBG = cloneOf(r.SMBG)
	r.Bolus = r.Bolus.clone()
	r.Termination = cloneOf(r.Termination)
	r.Wizard = r.Wizard.clone()
	r.Alarm = r.Alarm.clone()
	r.Reservoir = r.Reservoir.clone()
	r.Status = r.Status.clone()
	r.TimeChange = cloneOf(r.TimeChange)
	r.Settings = r.Settings.clone()
	r.Basal = r.Basal.clone()
	r.PodActivation = r.PodActivation.clone()

	return r
}

func (p *BolusPayload) clone() *BolusPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Normal = cloneOf(p.Normal)
	cp.Extended = cloneOf(p.Extended)
	cp.DurationMS = cloneOf(p.DurationMS)
	cp.ExpectedNormal = cloneOf(p.ExpectedNormal)
	cp.ExpectedExtended = cloneOf(p.ExpectedExtended)
	cp.ExpectedDurationMS = cloneOf(p.ExpectedDurationMS)

	return &cp
}

func (p *WizardPayload) clone() *WizardPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.CarbInput = cloneOf(p.CarbInput)
	cp.BGInput = cloneOf(p.BGInput)
	cp.InsulinOnBoard = cloneOf(p.InsulinOnBoard)
	cp.Recommended = cloneOf(p.Recommended)
	cp.Bolus = p.Bolus.clone()

	return &cp
}

func (p *AlarmPayload) clone() *AlarmPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Status = p.Status.clone()

	return &cp
}

func (p *ReservoirPayload) clone() *ReservoirPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Status = p.Status.clone()

	return &cp
}

func (p *StatusPayload) clone() *StatusPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.DurationMS = cloneOf(p.DurationMS)

	return &cp
}

func (p *SettingsPayload) clone() *SettingsPayload {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Schedules != nil {
		cp.Schedules = make(map[string][]ScheduleEntry, len(p.Schedules))
		for name, entries := range p.Schedules {
			cp.Schedules[name] = append([]ScheduleEntry(nil), entries...)
		}
	}

	return &cp
}

func (p *BasalPayload) clone() *BasalPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Percent = cloneOf(p.Percent)
	cp.DurationMS = cloneOf(p.DurationMS)
	cp.Suppressed = p.Suppressed.clone()

	return &cp
}

func (p *PodActivationPayload) clone() *PodActivationPayload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Status = p.Status.clone()

	return &cp
}
