package domain

type dosePhase int

const (
	phaseImmediate dosePhase = iota
	phaseExtended
)

// doseMatch tracks the most recently emitted dose and the delivery phases a
// termination notice can still settle. A combined dose settles its
// immediate phase first, then its extended phase.
type doseMatch struct {
	bolus  *BolusPayload
	phases []dosePhase
}

func newDoseMatch(bolus *BolusPayload) *doseMatch {
	var phases []dosePhase
	switch bolus.SubType {
	case BolusCombined:
		phases = []dosePhase{phaseImmediate, phaseExtended}
	case BolusExtended:
		phases = []dosePhase{phaseExtended}
	default:
		phases = []dosePhase{phaseImmediate}
	}

	return &doseMatch{bolus: bolus, phases: phases}
}

// settle amends the dose in place for one termination notice and reports
// whether an outstanding phase absorbed it. Declared volumes absent on the
// record count as zero; the amendment is kept even when the delivered
// volume was zero, since the expected total is what carries meaning.
func (m *doseMatch) settle(term TerminationPayload) bool {
	if m == nil || len(m.phases) == 0 {
		return false
	}
	phase := m.phases[0]
	m.phases = m.phases[1:]

	switch phase {
	case phaseImmediate:
		m.bolus.ExpectedNormal = ptrTo(orZero(m.bolus.Normal) + term.Missed)
	case phaseExtended:
		m.bolus.ExpectedExtended = ptrTo(orZero(m.bolus.Extended) + term.Missed)
		m.bolus.ExpectedDurationMS = ptrTo(orZero(m.bolus.DurationMS) + term.RemainingDurationMS)
	}

	return true
}
