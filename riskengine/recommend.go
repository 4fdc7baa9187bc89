package riskengine

import (
	"fmt"
	"strings"

	"github.com/safemed/safemed-api/drugbase/entities"
)

// Controlled vocabulary for the one-sentence summary.
var riskLevelPhrases = map[entities.RiskLevel]string{
	entities.RiskSafe:            "appears safe",
	entities.RiskCaution:         "may be used with some caution",
	entities.RiskWarning:         "has notable concerns",
	entities.RiskDanger:          "poses significant risks",
	entities.RiskContraindicated: "is not recommended",
}

const (
	maxListedAlternatives = 2
	maxListedMonitoring   = 2

	// The non-NSAID analgesics are suggested once the safety score
	// (100 minus risk score) drops below this floor.
	safetyScoreFloor = 50.0
)

// nsaidNames triggers the substitution fallback by drug-name substring.
// This is a narrow heuristic for one known risky class, not a drug-class
// taxonomy; records should carry their own alternatives where possible.
var nsaidNames = []string{"aspirin", "diclofenac", "ibuprofen", "ketorolac", "naproxen"}

var nsaidAlternatives = []string{"acetaminophen", "paracetamol"}

// Synthesis is the human-readable rendering of an assessment.
type Synthesis struct {
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Alternatives   []string `json:"alternatives"`
}

// Synthesize renders an assessment into a summary sentence, a
// recommendation and an alternatives list. Pure function of the assessment:
// the same input always yields the same text.
func Synthesize(assessment entities.RiskAssessment) Synthesis {
	alternatives := alternativesFor(assessment)
	return Synthesis{
		Summary:        buildSummary(assessment),
		Recommendation: buildRecommendation(assessment, alternatives),
		Alternatives:   alternatives,
	}
}

// buildSummary names the drug and its risk level, then the highest-priority
// finding count: hard stops over warnings over cautions.
func buildSummary(assessment entities.RiskAssessment) string {
	phrase, ok := riskLevelPhrases[assessment.OverallRiskLevel]
	if !ok {
		phrase = riskLevelPhrases[entities.RiskWarning]
	}

	var clause string
	switch {
	case len(assessment.HardStops) > 0:
		clause = pluralize(len(assessment.HardStops), "absolute contraindication", "absolute contraindications")
	case len(assessment.Warnings) > 0:
		clause = pluralize(len(assessment.Warnings), "warning", "warnings")
	case len(assessment.Cautions) > 0:
		clause = pluralize(len(assessment.Cautions), "caution", "cautions")
	default:
		clause = "no major concerns"
	}

	return fmt.Sprintf("%s %s for this profile: %s.", assessment.DrugName, phrase, clause)
}

func buildRecommendation(assessment entities.RiskAssessment, alternatives []string) string {
	if !assessment.CanTake {
		reasons := make([]string, 0, len(assessment.HardStops))
		for _, stop := range assessment.HardStops {
			reasons = append(reasons, stop.Reason)
		}
		message := fmt.Sprintf("Do not take %s: %s.", assessment.DrugName, strings.Join(reasons, "; "))
		if len(alternatives) > 0 {
			message += " Consider instead: " + strings.Join(truncate(alternatives, maxListedAlternatives), " or ") + "."
		} else {
			message += " Consult a healthcare provider about alternatives."
		}
		return message
	}

	if assessment.RecommendedMaxDose != "" {
		message := fmt.Sprintf("May be taken. Maximum dose: %s.", assessment.RecommendedMaxDose)
		if len(assessment.MonitoringRequired) > 0 {
			message += " Monitor: " + strings.Join(truncate(assessment.MonitoringRequired, maxListedMonitoring), ", ") + "."
		}
		return message
	}

	switch assessment.OverallRiskLevel {
	case entities.RiskDanger:
		return "High risk for this profile. Do not take this drug without consulting a healthcare provider."
	case entities.RiskWarning:
		return "Consult a healthcare provider before taking this drug."
	case entities.RiskCaution:
		return "Generally safe for this profile. Watch for the listed side effects."
	default:
		return "Follow the standard dosing guidance."
	}
}

// alternativesFor passes through the assessment's alternatives when present.
// Otherwise, for NSAIDs with a safety score below the floor, it falls back
// to the static substitution list.
func alternativesFor(assessment entities.RiskAssessment) []string {
	if len(assessment.AlternativesToConsider) > 0 {
		return append([]string(nil), assessment.AlternativesToConsider...)
	}
	if isNSAIDName(assessment.DrugName) && maxRiskScore-assessment.RiskScore < safetyScoreFloor {
		return append([]string(nil), nsaidAlternatives...)
	}
	return nil
}

func isNSAIDName(drugName string) bool {
	for _, name := range nsaidNames {
		if strings.Contains(drugName, name) {
			return true
		}
	}
	return false
}

func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

func truncate(values []string, max int) []string {
	if len(values) <= max {
		return values
	}
	return values[:max]
}
