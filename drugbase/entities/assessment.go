package entities

// RiskLevel is the ordered overall verdict for one assessment.
type RiskLevel string

const (
	RiskSafe            RiskLevel = "safe"
	RiskCaution         RiskLevel = "caution"
	RiskWarning         RiskLevel = "warning"
	RiskDanger          RiskLevel = "danger"
	RiskContraindicated RiskLevel = "contraindicated"
)

// Rank returns the level's position in the safe < caution < warning <
// danger < contraindicated ordering. Unknown levels rank below safe.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskSafe:
		return 1
	case RiskCaution:
		return 2
	case RiskWarning:
		return 3
	case RiskDanger:
		return 4
	case RiskContraindicated:
		return 5
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// HardStop is one matched absolute contraindication.
type HardStop struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// RiskFlag is one matched graded rule, surfaced as a warning or caution
// depending on its multiplier. Drug-interaction flags carry the interacting
// drug name.
type RiskFlag struct {
	Type            string  `json:"type"`
	Severity        string  `json:"severity"`
	RiskMultiplier  float64 `json:"risk_multiplier"`
	Reason          string  `json:"reason"`
	Detail          string  `json:"detail,omitempty"`
	Effect          string  `json:"effect,omitempty"`
	Mechanism       string  `json:"mechanism,omitempty"`
	Recommendation  string  `json:"recommendation,omitempty"`
	InteractingDrug string  `json:"interacting_drug,omitempty"`
}

// PersonalizedSideEffect is a side effect with its frequency adjusted to
// the patient. RelevantFactors names the matched factors that contributed,
// for explainability.
type PersonalizedSideEffect struct {
	Name                  string   `json:"name"`
	Severity              string   `json:"severity"`
	BaseFrequency         float64  `json:"base_frequency"`
	PersonalizedFrequency float64  `json:"personalized_frequency"`
	RiskMultiplier        float64  `json:"risk_multiplier"`
	RelevantFactors       []string `json:"relevant_factors,omitempty"`
}

// ScoreBreakdown exposes the sub-scores that sum into the total, plus the
// named factors that contributed to each.
type ScoreBreakdown struct {
	ContraindicationScore float64  `json:"contraindication_score"`
	InteractionScore      float64  `json:"interaction_score"`
	DemographicScore      float64  `json:"demographic_score"`
	ConditionScore        float64  `json:"condition_score"`
	TotalScore            float64  `json:"total_score"`
	ContributingFactors   []string `json:"contributing_factors"`
}

// RiskAssessment is the engine's structured verdict for one (drug, profile)
// pair. It is computed fresh per request and never cached or shared across
// patients. CanTake is false exactly when HardStops is non-empty and is
// independent of RiskScore.
type RiskAssessment struct {
	DrugName                string                   `json:"drug_name"`
	OverallRiskLevel        RiskLevel                `json:"overall_risk_level"`
	RiskScore               float64                  `json:"risk_score"`
	CanTake                 bool                     `json:"can_take"`
	HardStops               []HardStop               `json:"hard_stops"`
	Warnings                []RiskFlag               `json:"warnings"`
	Cautions                []RiskFlag               `json:"cautions"`
	PersonalizedSideEffects []PersonalizedSideEffect `json:"personalized_side_effects"`
	RecommendedMaxDose      string                   `json:"recommended_max_dose,omitempty"`
	MonitoringRequired      []string                 `json:"monitoring_required"`
	AlternativesToConsider  []string                 `json:"alternatives_to_consider"`
	DetailedBreakdown       ScoreBreakdown           `json:"detailed_breakdown"`
}

// QuickCheckResult is the reduced verdict for the quick-check surface.
type QuickCheckResult struct {
	CanTake   bool      `json:"can_take"`
	RiskLevel RiskLevel `json:"risk_level"`
	RiskScore float64   `json:"risk_score"`
}
