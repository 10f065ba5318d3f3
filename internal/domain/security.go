package domain

// RiskLevel enumerates guardrail outcomes. kmd never executes commands, so
// risk is advisory: it colors the presentation and the status API, nothing
// is ever blocked from the clipboard except by cache policy.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity orders risk levels for comparison; higher is worse.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Severity() >= other.Severity()
}

// RiskAssessment aggregates guardrail evaluation of one generated command.
type RiskAssessment struct {
	Level        RiskLevel `json:"level"`
	Reasons      []string  `json:"reasons,omitempty"`
	MatchedRules []string  `json:"matched_rules,omitempty"`
}
