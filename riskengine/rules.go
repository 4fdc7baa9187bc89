package riskengine

import (
	"fmt"
	"sort"

	"github.com/safemed/safemed-api/drugbase/entities"
)

// Severity bands for interaction risk multipliers.
const (
	criticalMultiplier = 3.0
	highMultiplier     = 2.0
	mediumMultiplier   = 1.5
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// severityForMultiplier maps a risk multiplier to the severity label carried
// by the resulting flag. Multipliers at or above the high band surface as
// warnings, everything below as cautions.
func severityForMultiplier(multiplier float64) string {
	switch {
	case multiplier >= criticalMultiplier:
		return SeverityCritical
	case multiplier >= highMultiplier:
		return SeverityHigh
	case multiplier >= mediumMultiplier:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// profilePredicate is a compiled rule predicate. Predicates are pure: they
// read the profile and nothing else.
type profilePredicate func(patient *entities.PatientProfile) bool

// compileContraindication turns a declarative rule into a predicate. An
// unknown kind or an underspecified rule is an error; a rule that cannot be
// evaluated must never be skipped.
func compileContraindication(rule entities.ContraindicationRule) (profilePredicate, error) {
	switch rule.Kind {
	case entities.ContraindicationCondition:
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("condition contraindication %q has no keywords", rule.Reason)
		}
		keywords := rule.Keywords
		return func(patient *entities.PatientProfile) bool {
			for _, keyword := range keywords {
				if patient.HasConditionContaining(keyword) {
					return true
				}
			}
			return false
		}, nil

	case entities.ContraindicationAllergy:
		if len(rule.AllergyTerms) == 0 {
			return nil, fmt.Errorf("allergy contraindication %q has no allergy terms", rule.Reason)
		}
		terms := rule.AllergyTerms
		return func(patient *entities.PatientProfile) bool {
			for _, term := range terms {
				if patient.HasAllergyTo(term) {
					return true
				}
			}
			return false
		}, nil

	case entities.ContraindicationPregnancy:
		trimesters := rule.Trimesters
		return func(patient *entities.PatientProfile) bool {
			if !patient.Pregnant {
				return false
			}
			if len(trimesters) == 0 {
				return true
			}
			// An unknown trimester matches a trimester-scoped rule;
			// unknown never counts as safe.
			if patient.PregnancyTrimester == 0 {
				return true
			}
			for _, trimester := range trimesters {
				if patient.PregnancyTrimester == trimester {
					return true
				}
			}
			return false
		}, nil

	case entities.ContraindicationLab:
		if rule.MinEGFR <= 0 {
			return nil, fmt.Errorf("lab contraindication %q has no min_egfr", rule.Reason)
		}
		minEGFR := rule.MinEGFR
		return func(patient *entities.PatientProfile) bool {
			return patient.EGFR != nil && *patient.EGFR < minEGFR
		}, nil

	default:
		return nil, fmt.Errorf("unknown contraindication kind %q", rule.Kind)
	}
}

// compileInteraction turns a declarative interaction rule into a predicate.
func compileInteraction(rule entities.InteractionRule) (profilePredicate, error) {
	if rule.RiskMultiplier <= 1.0 {
		return nil, fmt.Errorf("interaction %q has risk multiplier %.2f, want > 1.0", rule.Reason, rule.RiskMultiplier)
	}

	switch rule.Kind {
	case entities.InteractionDrug:
		if rule.InteractingDrug == "" {
			return nil, fmt.Errorf("drug interaction %q has no interacting_drug", rule.Reason)
		}
		// Keywords are alternative names for the interacting drug, e.g.
		// brand names the patient may have listed.
		names := append([]string{rule.InteractingDrug}, rule.Keywords...)
		return func(patient *entities.PatientProfile) bool {
			for _, name := range names {
				if patient.TakesMedicationLike(name) {
					return true
				}
			}
			return false
		}, nil

	case entities.InteractionCondition:
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("condition interaction %q has no keywords", rule.Reason)
		}
		keywords := rule.Keywords
		return func(patient *entities.PatientProfile) bool {
			for _, keyword := range keywords {
				if patient.HasConditionContaining(keyword) {
					return true
				}
			}
			return false
		}, nil

	case entities.InteractionHistory:
		return compileHistoryPredicate(rule.HistoryFlag, rule.Reason)

	case entities.InteractionDemographic:
		if rule.MinAge <= 0 {
			return nil, fmt.Errorf("demographic interaction %q has no min_age", rule.Reason)
		}
		minAge := rule.MinAge
		return func(patient *entities.PatientProfile) bool {
			return patient.Age >= minAge
		}, nil

	case entities.InteractionLab:
		if (rule.MaxEGFR > 0) == (rule.MaxPotassium > 0) {
			return nil, fmt.Errorf("lab interaction %q needs exactly one of max_egfr or max_potassium", rule.Reason)
		}
		// Matches a measured lab value below the threshold. A missing lab
		// value matches no lab rule; the demographic baseline covers the
		// unknown.
		if rule.MaxEGFR > 0 {
			maxEGFR := rule.MaxEGFR
			return func(patient *entities.PatientProfile) bool {
				return patient.EGFR != nil && *patient.EGFR < maxEGFR
			}, nil
		}
		maxPotassium := rule.MaxPotassium
		return func(patient *entities.PatientProfile) bool {
			return patient.Potassium != nil && *patient.Potassium < maxPotassium
		}, nil

	default:
		return nil, fmt.Errorf("unknown interaction kind %q", rule.Kind)
	}
}

func compileHistoryPredicate(flag, reason string) (profilePredicate, error) {
	switch flag {
	case entities.FlagGIBleed:
		return func(patient *entities.PatientProfile) bool { return patient.HistoryGIBleed }, nil
	case entities.FlagMI:
		return func(patient *entities.PatientProfile) bool { return patient.HistoryMI }, nil
	case entities.FlagStroke:
		return func(patient *entities.PatientProfile) bool { return patient.HistoryStroke }, nil
	case entities.FlagArrhythmia:
		return func(patient *entities.PatientProfile) bool { return patient.HistoryArrhythmia }, nil
	case entities.FlagSeizures:
		return func(patient *entities.PatientProfile) bool { return patient.HistorySeizures }, nil
	default:
		return nil, fmt.Errorf("history interaction %q has unknown flag %q", reason, flag)
	}
}

// matchesDemographicRisk reports whether a demographic risk applies to the
// profile. These rules scale side effect frequencies and add monitoring
// advice; they do not gate can_take.
func matchesDemographicRisk(rule entities.DemographicRisk, patient *entities.PatientProfile) (bool, error) {
	switch rule.Kind {
	case entities.DemographicAge:
		if rule.MinAge == 0 && rule.MaxAge == 0 {
			return false, fmt.Errorf("age demographic risk %q has no age bounds", rule.Factor)
		}
		if rule.MinAge > 0 && patient.Age < rule.MinAge {
			return false, nil
		}
		if rule.MaxAge > 0 && patient.Age > rule.MaxAge {
			return false, nil
		}
		return true, nil

	case entities.DemographicPregnancy:
		if !patient.Pregnant {
			return false, nil
		}
		if len(rule.Trimesters) == 0 || patient.PregnancyTrimester == 0 {
			return true, nil
		}
		for _, trimester := range rule.Trimesters {
			if patient.PregnancyTrimester == trimester {
				return true, nil
			}
		}
		return false, nil

	case entities.DemographicRenal:
		if rule.MaxEGFR <= 0 {
			return false, fmt.Errorf("renal demographic risk %q has no max_egfr", rule.Factor)
		}
		return patient.EGFR != nil && *patient.EGFR < rule.MaxEGFR, nil

	case entities.DemographicSmoker:
		return patient.Smoker, nil

	case entities.DemographicAlcohol:
		return patient.AlcoholUse == entities.AlcoholModerate || patient.AlcoholUse == entities.AlcoholHeavy, nil

	default:
		return false, fmt.Errorf("unknown demographic risk kind %q", rule.Kind)
	}
}

// riskCategoryKeywords maps each risk category to the condition keywords
// that activate it. Categories key into DrugRecord.RiskMultipliers and
// SideEffect.RiskCategories.
var riskCategoryKeywords = map[string][]string{
	"gi":             {"gastric", "gastritis", "gi bleed", "reflux", "stomach", "ulcer"},
	"renal":          {"ckd", "kidney", "nephropathy", "renal"},
	"cardiovascular": {"cardiac", "cardiovascular", "coronary", "heart", "hypertension", "stroke"},
	"bleeding":       {"anticoagul", "bleed", "clotting", "hemophilia", "thrombocytopenia"},
	"metabolic":      {"diabetes", "metabolic", "thyroid"},
	"respiratory":    {"asthma", "bronchitis", "copd", "respiratory"},
	"neuro":          {"epilep", "migraine", "neuro", "parkinson", "seizure"},
}

// profileRiskCategories derives the risk categories a profile activates.
// History flags, labs and pregnancy activate categories even when the
// free-text conditions use none of the keywords. The result is sorted so
// assessments stay deterministic.
func profileRiskCategories(patient *entities.PatientProfile) []string {
	categories := make(map[string]bool)
	for category, keywords := range riskCategoryKeywords {
		for _, keyword := range keywords {
			if patient.HasConditionContaining(keyword) {
				categories[category] = true
				break
			}
		}
	}
	if patient.HistoryGIBleed {
		categories["gi"] = true
		categories["bleeding"] = true
	}
	if patient.HistoryMI || patient.HistoryStroke || patient.HistoryArrhythmia {
		categories["cardiovascular"] = true
	}
	if patient.HistorySeizures {
		categories["neuro"] = true
	}
	if patient.EGFR != nil && *patient.EGFR < lowEGFRThreshold {
		categories["renal"] = true
	}
	if patient.Pregnant {
		categories["pregnancy"] = true
	}

	out := make([]string, 0, len(categories))
	for category := range categories {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// ValidateRules compiles every rule of a record and returns the first
// error. Loaders call this so a bad knowledge base is rejected at load time
// instead of failing requests.
func ValidateRules(record *entities.DrugRecord) error {
	for _, rule := range record.Contraindications {
		if _, err := compileContraindication(rule); err != nil {
			return err
		}
	}
	for _, rule := range record.Interactions {
		if _, err := compileInteraction(rule); err != nil {
			return err
		}
	}
	for _, rule := range record.DemographicRisks {
		if _, err := matchesDemographicRisk(rule, &entities.PatientProfile{Age: 1}); err != nil {
			return err
		}
	}
	return nil
}
