package domain

// RiskLevel is the audit risk tier assigned to a record.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "Unknown"
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
)

// rank orders levels for monotonic escalation. Unknown sits below Low: it is
// a failure sentinel, never the outcome of a rule.
func (l RiskLevel) rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// Escalate returns the higher of l and other. Risk levels only ever move
// upward as rules match.
func (l RiskLevel) Escalate(other RiskLevel) RiskLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// RiskAssessment is attached to every classified record.
type RiskAssessment struct {
	Level     RiskLevel
	Rationale string
}
