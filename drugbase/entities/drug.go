package entities

// Side effect severity labels.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Contraindication rule kinds. A rule's kind selects which predicate the
// risk engine compiles for it; unknown kinds are rejected at load time.
const (
	ContraindicationCondition = "condition"
	ContraindicationAllergy   = "allergy"
	ContraindicationPregnancy = "pregnancy"
	ContraindicationLab       = "lab"
)

// Interaction rule kinds.
const (
	InteractionDrug        = "drug"
	InteractionCondition   = "condition"
	InteractionHistory     = "history"
	InteractionDemographic = "demographic"
	InteractionLab         = "lab"
)

// Demographic risk kinds.
const (
	DemographicAge       = "age"
	DemographicPregnancy = "pregnancy"
	DemographicRenal     = "renal"
	DemographicSmoker    = "smoker"
	DemographicAlcohol   = "alcohol"
)

// History flag names referenced by history-kind interaction rules.
const (
	FlagGIBleed    = "gi_bleed"
	FlagMI         = "mi"
	FlagStroke     = "stroke"
	FlagArrhythmia = "arrhythmia"
	FlagSeizures   = "seizures"
)

// SideEffect is one adverse effect with its base population rate.
// BaseFrequency is a probability in [0,1]; FrequencyLabel keeps the source
// vocabulary ("common", "rare") for display. RiskCategories names the risk
// groups ("gi", "cardiovascular") whose multipliers amplify this effect
// during personalization.
type SideEffect struct {
	Name           string   `json:"name"`
	BaseSeverity   string   `json:"base_severity"`
	BaseFrequency  float64  `json:"base_frequency"`
	FrequencyLabel string   `json:"frequency_label,omitempty"`
	RiskCategories []string `json:"risk_categories,omitempty"`
}

// ContraindicationRule is an absolute hard stop. When its predicate matches
// a profile the drug must not be taken, regardless of every other rule.
// Only the parameter fields matching Kind are consulted.
type ContraindicationRule struct {
	Kind         string   `json:"kind"`
	Reason       string   `json:"reason"`
	Detail       string   `json:"detail,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`      // condition kind
	AllergyTerms []string `json:"allergy_terms,omitempty"` // allergy kind
	Trimesters   []int    `json:"trimesters,omitempty"`    // pregnancy kind
	MinEGFR      float64  `json:"min_egfr,omitempty"`      // lab kind: hard stop below this
	Alternatives []string `json:"alternatives,omitempty"`
}

// InteractionRule is a graded risk rule. A match contributes its
// RiskMultiplier to the interaction score and surfaces as a warning
// (multiplier >= 2.0) or a caution. Drug-kind matches carry the interacting
// drug name for the caller. Only the parameter fields matching Kind are
// consulted.
type InteractionRule struct {
	Kind            string   `json:"kind"`
	RiskMultiplier  float64  `json:"risk_multiplier"`
	Reason          string   `json:"reason"`
	Detail          string   `json:"detail,omitempty"`
	Effect          string   `json:"effect,omitempty"`
	Mechanism       string   `json:"mechanism,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
	InteractingDrug string   `json:"interacting_drug,omitempty"` // drug kind
	DrugClass       string   `json:"drug_class,omitempty"`       // drug kind, informational
	Keywords        []string `json:"keywords,omitempty"`         // condition kind
	HistoryFlag     string   `json:"history_flag,omitempty"`     // history kind
	MinAge          int      `json:"min_age,omitempty"`          // demographic kind
	MaxEGFR         float64  `json:"max_egfr,omitempty"`         // lab kind: matches below this
	MaxPotassium    float64  `json:"max_potassium,omitempty"`    // lab kind: matches below this
}

// DemographicRisk amplifies specific side effects for a patient group and
// contributes recommendations. It does not gate the drug by itself.
type DemographicRisk struct {
	Kind            string   `json:"kind"`
	Factor          string   `json:"factor"`
	RiskMultiplier  float64  `json:"risk_multiplier"`
	MinAge          int      `json:"min_age,omitempty"`    // age kind
	MaxAge          int      `json:"max_age,omitempty"`    // age kind, 0 means unbounded
	Trimesters      []int    `json:"trimesters,omitempty"` // pregnancy kind, empty means any
	MaxEGFR         float64  `json:"max_egfr,omitempty"`   // renal kind
	RiskCategories  []string `json:"risk_categories,omitempty"`
	SideEffects     []string `json:"specific_side_effects,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// DosingGuidance carries label-level dosing limits and the monitoring a
// prescriber should order. ByRiskLevel maps a risk level name to the dosing
// wording appropriate at that level.
type DosingGuidance struct {
	MaxDose     string            `json:"max_dose,omitempty"`
	ByRiskLevel map[string]string `json:"by_risk_level,omitempty"`
	Monitoring  []string          `json:"monitoring,omitempty"`
}

// DrugRecord is one knowledge base entry. DrugName is the canonical
// lowercase key; Aliases are lowercase brand names resolving to it.
// Records are read-only after load and safely shared across evaluations.
type DrugRecord struct {
	DrugID            string                 `json:"drug_id,omitempty"`
	DrugName          string                 `json:"drug_name"`
	DrugClass         string                 `json:"drug_class,omitempty"`
	Aliases           []string               `json:"aliases,omitempty"`
	DataSources       []string               `json:"data_sources,omitempty"`
	SideEffects       []SideEffect           `json:"side_effects"`
	Contraindications []ContraindicationRule `json:"contraindications"`
	Interactions      []InteractionRule      `json:"interactions"`
	DemographicRisks  []DemographicRisk      `json:"demographic_risks,omitempty"`
	RiskMultipliers   map[string]float64     `json:"risk_multipliers,omitempty"`
	Dosing            DosingGuidance         `json:"dosing"`
	RiskSummary       string                 `json:"risk_summary,omitempty"`
}
