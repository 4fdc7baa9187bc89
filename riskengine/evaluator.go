package riskengine

import (
	"math"
	"sort"

	"github.com/safemed/safemed-api/drugbase/entities"
)

// Score weights. A single hard stop or a high-band interaction alone pushes
// the total into the warning band and beyond.
const (
	hardStopScore        = 40.0
	interactionScoreUnit = 20.0
	conditionScoreUnit   = 5.0
	conditionScoreCap    = 25.0

	elderlyAgeScore = 25.0
	seniorAgeScore  = 15.0
	infantAgeScore  = 10.0
	pregnancyScore  = 10.0
	lowEGFRScore    = 10.0

	elderlyAge = 75
	seniorAge  = 65
	infantAge  = 2

	lowEGFRThreshold = 60.0

	maxRiskScore = 100.0

	maxPersonalizedSideEffects = 10
)

// Risk level boundaries on the clamped score.
const (
	cautionThreshold = 15.0
	warningThreshold = 40.0
	dangerThreshold  = 70.0
)

// Evaluate assesses one drug for one patient. It is a pure function: no
// clock, no randomness, no I/O, and neither input is mutated, so identical
// inputs always produce an identical assessment and calls may run in
// parallel without coordination. A rule the engine cannot apply returns an
// EvaluationError; the assessment is never silently under-scored.
func Evaluate(patient entities.PatientProfile, drug entities.DrugRecord) (entities.RiskAssessment, error) {
	hardStops, alternatives, err := evaluateContraindications(&patient, drug)
	if err != nil {
		return entities.RiskAssessment{}, err
	}

	warnings, cautions, interactionScore, err := evaluateInteractions(&patient, drug)
	if err != nil {
		return entities.RiskAssessment{}, err
	}

	demographicScore, demographicFactors := evaluateDemographics(&patient)

	matchedDemographics, err := matchDemographicRisks(&patient, drug)
	if err != nil {
		return entities.RiskAssessment{}, err
	}

	breakdown := entities.ScoreBreakdown{
		ContraindicationScore: hardStopScore * float64(len(hardStops)),
		InteractionScore:      interactionScore,
		DemographicScore:      demographicScore,
		ConditionScore:        conditionLoadScore(patient.Conditions),
	}
	total := breakdown.ContraindicationScore + breakdown.InteractionScore +
		breakdown.DemographicScore + breakdown.ConditionScore
	breakdown.TotalScore = clamp(total, 0, maxRiskScore)
	breakdown.ContributingFactors = contributingFactors(hardStops, warnings, cautions, demographicFactors)

	level := levelForScore(breakdown.TotalScore, len(hardStops) > 0)

	return entities.RiskAssessment{
		DrugName:                drug.DrugName,
		OverallRiskLevel:        level,
		RiskScore:               breakdown.TotalScore,
		CanTake:                 len(hardStops) == 0,
		HardStops:               hardStops,
		Warnings:                warnings,
		Cautions:                cautions,
		PersonalizedSideEffects: personalizeSideEffects(&patient, drug, matchedDemographics),
		RecommendedMaxDose:      recommendedDose(drug.Dosing, level),
		MonitoringRequired:      monitoringRequired(drug.Dosing, matchedDemographics),
		AlternativesToConsider:  alternatives,
		DetailedBreakdown:       breakdown,
	}, nil
}

// QuickCheckOf reduces a full assessment to the quick check result. The
// reduced view always agrees with the assessment it came from.
func QuickCheckOf(assessment entities.RiskAssessment) entities.QuickCheckResult {
	return entities.QuickCheckResult{
		CanTake:   assessment.CanTake,
		RiskLevel: assessment.OverallRiskLevel,
		RiskScore: assessment.RiskScore,
	}
}

// levelForScore maps a clamped score to its band. Any hard stop forces
// contraindicated regardless of the score.
func levelForScore(score float64, hasHardStop bool) entities.RiskLevel {
	switch {
	case hasHardStop:
		return entities.RiskContraindicated
	case score >= dangerThreshold:
		return entities.RiskDanger
	case score >= warningThreshold:
		return entities.RiskWarning
	case score >= cautionThreshold:
		return entities.RiskCaution
	default:
		return entities.RiskSafe
	}
}

func evaluateContraindications(patient *entities.PatientProfile, drug entities.DrugRecord) ([]entities.HardStop, []string, error) {
	var hardStops []entities.HardStop
	var alternatives []string

	for _, rule := range drug.Contraindications {
		predicate, err := compileContraindication(rule)
		if err != nil {
			return nil, nil, &EvaluationError{DrugName: drug.DrugName, Reason: err.Error()}
		}
		if !predicate(patient) {
			continue
		}
		hardStops = append(hardStops, entities.HardStop{Reason: rule.Reason, Detail: rule.Detail})
		alternatives = append(alternatives, rule.Alternatives...)
	}
	return hardStops, dedupePreservingOrder(alternatives), nil
}

func evaluateInteractions(patient *entities.PatientProfile, drug entities.DrugRecord) (warnings, cautions []entities.RiskFlag, score float64, err error) {
	for _, rule := range drug.Interactions {
		predicate, err := compileInteraction(rule)
		if err != nil {
			return nil, nil, 0, &EvaluationError{DrugName: drug.DrugName, Reason: err.Error()}
		}
		if !predicate(patient) {
			continue
		}

		flag := entities.RiskFlag{
			Type:            rule.Kind,
			Severity:        severityForMultiplier(rule.RiskMultiplier),
			RiskMultiplier:  rule.RiskMultiplier,
			Reason:          rule.Reason,
			Detail:          rule.Detail,
			Effect:          rule.Effect,
			Mechanism:       rule.Mechanism,
			Recommendation:  rule.Recommendation,
			InteractingDrug: rule.InteractingDrug,
		}

		score += rule.RiskMultiplier * interactionScoreUnit
		if rule.RiskMultiplier >= highMultiplier {
			warnings = append(warnings, flag)
		} else {
			cautions = append(cautions, flag)
		}
	}
	return warnings, cautions, score, nil
}

// evaluateDemographics scores the fixed demographic baseline. It applies to
// every drug, matched rules or not, so age extremes carry risk even against
// an otherwise clean record.
func evaluateDemographics(patient *entities.PatientProfile) (float64, []string) {
	var score float64
	var factors []string

	switch {
	case patient.Age >= elderlyAge:
		score += elderlyAgeScore
		factors = append(factors, "age 75 or older")
	case patient.Age >= seniorAge:
		score += seniorAgeScore
		factors = append(factors, "age 65 to 74")
	case patient.Age < infantAge:
		score += infantAgeScore
		factors = append(factors, "age under 2")
	}
	if patient.Pregnant {
		score += pregnancyScore
		factors = append(factors, "pregnancy")
	}
	if patient.EGFR != nil && *patient.EGFR < lowEGFRThreshold {
		score += lowEGFRScore
		factors = append(factors, "reduced kidney function")
	}
	return score, factors
}

func matchDemographicRisks(patient *entities.PatientProfile, drug entities.DrugRecord) ([]entities.DemographicRisk, error) {
	var matched []entities.DemographicRisk
	for _, rule := range drug.DemographicRisks {
		ok, err := matchesDemographicRisk(rule, patient)
		if err != nil {
			return nil, &EvaluationError{DrugName: drug.DrugName, Reason: err.Error()}
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// personalizeSideEffects scales each side effect's base frequency by the
// drug-level multipliers of the risk categories the profile activates and by
// matched demographic risks targeting the effect. Frequencies are clamped to
// [0,1]. The ten most likely effects are returned, most likely first, with
// the name as tie-break so output order is stable.
func personalizeSideEffects(patient *entities.PatientProfile, drug entities.DrugRecord, demographics []entities.DemographicRisk) []entities.PersonalizedSideEffect {
	active := make(map[string]bool)
	for _, category := range profileRiskCategories(patient) {
		active[category] = true
	}

	out := make([]entities.PersonalizedSideEffect, 0, len(drug.SideEffects))
	for _, effect := range drug.SideEffects {
		multiplier := 1.0
		var factors []string

		for _, category := range effect.RiskCategories {
			if !active[category] {
				continue
			}
			if m, ok := drug.RiskMultipliers[category]; ok && m > 0 {
				multiplier *= m
				factors = append(factors, category+" risk")
			}
		}
		for _, rule := range demographics {
			if rule.RiskMultiplier <= 0 || !demographicTargetsEffect(rule, effect) {
				continue
			}
			multiplier *= rule.RiskMultiplier
			factors = append(factors, rule.Factor)
		}

		out = append(out, entities.PersonalizedSideEffect{
			Name:                  effect.Name,
			Severity:              effect.BaseSeverity,
			BaseFrequency:         effect.BaseFrequency,
			PersonalizedFrequency: clamp(effect.BaseFrequency*multiplier, 0, 1),
			RiskMultiplier:        multiplier,
			RelevantFactors:       factors,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PersonalizedFrequency != out[j].PersonalizedFrequency {
			return out[i].PersonalizedFrequency > out[j].PersonalizedFrequency
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxPersonalizedSideEffects {
		out = out[:maxPersonalizedSideEffects]
	}
	return out
}

// demographicTargetsEffect reports whether a matched demographic risk scales
// this side effect, either by naming it or by sharing a risk category. A
// rule that names neither scales every effect.
func demographicTargetsEffect(rule entities.DemographicRisk, effect entities.SideEffect) bool {
	if len(rule.SideEffects) == 0 && len(rule.RiskCategories) == 0 {
		return true
	}
	for _, name := range rule.SideEffects {
		if name == effect.Name {
			return true
		}
	}
	for _, category := range rule.RiskCategories {
		for _, effectCategory := range effect.RiskCategories {
			if category == effectCategory {
				return true
			}
		}
	}
	return false
}

// conditionLoadScore weighs comorbidity count, capped so long condition
// lists cannot dominate the total.
func conditionLoadScore(conditions []string) float64 {
	return math.Min(float64(len(conditions))*conditionScoreUnit, conditionScoreCap)
}

// recommendedDose picks the dose guidance for the assessed level. No dose is
// recommended for a contraindicated drug.
func recommendedDose(dosing entities.DosingGuidance, level entities.RiskLevel) string {
	if level == entities.RiskContraindicated {
		return ""
	}
	if dose, ok := dosing.ByRiskLevel[string(level)]; ok && dose != "" {
		return dose
	}
	return dosing.MaxDose
}

// monitoringRequired merges the record's monitoring list with the advice of
// matched demographic risks.
func monitoringRequired(dosing entities.DosingGuidance, demographics []entities.DemographicRisk) []string {
	merged := append([]string(nil), dosing.Monitoring...)
	for _, rule := range demographics {
		merged = append(merged, rule.Recommendations...)
	}
	return dedupePreservingOrder(merged)
}

func contributingFactors(hardStops []entities.HardStop, warnings, cautions []entities.RiskFlag, demographic []string) []string {
	factors := make([]string, 0, len(hardStops)+len(warnings)+len(cautions)+len(demographic))
	for _, stop := range hardStops {
		factors = append(factors, stop.Reason)
	}
	for _, flag := range warnings {
		factors = append(factors, flag.Reason)
	}
	for _, flag := range cautions {
		factors = append(factors, flag.Reason)
	}
	factors = append(factors, demographic...)
	return dedupePreservingOrder(factors)
}

func dedupePreservingOrder(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}

func clamp(value, low, high float64) float64 {
	return math.Min(math.Max(value, low), high)
}
