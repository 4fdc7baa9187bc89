// Package profile normalizes raw client input into the canonical
// PatientProfile consumed by the risk engine. Normalization is pure:
// identical input always yields an identical profile and caller data is
// never mutated.
package profile

import "strings"

// Classifier derives medical history flags from a canonical condition list.
// Implementations must be pure so normalization stays deterministic.
type Classifier interface {
	Classify(conditions []string) HistoryFlags
}

// HistoryFlags are the derived history markers rule predicates match on.
// They are always recomputed from the condition list, never accepted from
// client input.
type HistoryFlags struct {
	GIBleed    bool
	MI         bool
	Stroke     bool
	Arrhythmia bool
	Seizures   bool
}

// KeywordClassifier raises a flag when any condition contains one of the
// flag's keywords. Matching is plain substring search over canonical
// lowercase conditions, with OR semantics per flag; one condition can raise
// several flags. Short keywords such as "mi" also match inside longer words,
// which is the known trade-off of keyword classification until a structured
// condition taxonomy replaces it.
type KeywordClassifier struct {
	GIBleedKeywords    []string
	MIKeywords         []string
	StrokeKeywords     []string
	ArrhythmiaKeywords []string
	SeizureKeywords    []string
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier returns the classifier with the default keyword
// tables.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		GIBleedKeywords:    []string{"gastric bleed", "gastrointestinal bleed", "gi bleed", "stomach bleed", "ulcer"},
		MIKeywords:         []string{"heart", "infarction", "mi"},
		StrokeKeywords:     []string{"cerebrovascular", "stroke", "tia"},
		ArrhythmiaKeywords: []string{"afib", "arrhythmia", "atrial fibrillation", "irregular heart"},
		SeizureKeywords:    []string{"convulsion", "epilep", "seizure"},
	}
}

func (c *KeywordClassifier) Classify(conditions []string) HistoryFlags {
	return HistoryFlags{
		GIBleed:    matchesAny(conditions, c.GIBleedKeywords),
		MI:         matchesAny(conditions, c.MIKeywords),
		Stroke:     matchesAny(conditions, c.StrokeKeywords),
		Arrhythmia: matchesAny(conditions, c.ArrhythmiaKeywords),
		Seizures:   matchesAny(conditions, c.SeizureKeywords),
	}
}

func matchesAny(conditions, keywords []string) bool {
	for _, condition := range conditions {
		for _, keyword := range keywords {
			if strings.Contains(condition, keyword) {
				return true
			}
		}
	}
	return false
}
