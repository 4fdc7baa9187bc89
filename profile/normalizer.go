package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/riskengine"
)

// maxAge is the upper bound accepted for patient age.
const maxAge = 130

// Normalizer validates and canonicalizes raw profiles. The classifier that
// derives history flags is injectable so keyword matching can be replaced by
// a structured condition taxonomy without touching the risk engine.
type Normalizer struct {
	classifier Classifier
}

// Compile-time check that Normalizer implements the ProfileNormalizer interface
var _ interfaces.ProfileNormalizer = (*Normalizer)(nil)

func NewNormalizer() *Normalizer {
	return &Normalizer{classifier: NewKeywordClassifier()}
}

func NewNormalizerWithClassifier(classifier Classifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// Normalize turns a raw client profile into the canonical form. Condition,
// medication and allergy entries are trimmed, lowercased, deduplicated and
// sorted; history flags are recomputed from the canonical conditions on
// every call. Missing optional fields default to the cautious side: unknown
// sex stays unknown and absent lab values leave their rules unmatched rather
// than counting as normal.
func (n *Normalizer) Normalize(raw entities.RawProfile) (entities.PatientProfile, error) {
	if raw.Age < 0 {
		return entities.PatientProfile{}, &riskengine.ValidationError{Field: "age", Message: "must not be negative"}
	}
	if raw.Age > maxAge {
		return entities.PatientProfile{}, &riskengine.ValidationError{Field: "age", Message: fmt.Sprintf("must not exceed %d", maxAge)}
	}

	sex, err := normalizeSex(raw.Sex)
	if err != nil {
		return entities.PatientProfile{}, err
	}
	alcohol, err := normalizeAlcoholUse(raw.AlcoholUse)
	if err != nil {
		return entities.PatientProfile{}, err
	}

	if raw.PregnancyTrimester != 0 {
		if !raw.Pregnant {
			return entities.PatientProfile{}, &riskengine.ValidationError{Field: "pregnancy_trimester", Message: "set while pregnant is false"}
		}
		if raw.PregnancyTrimester < 1 || raw.PregnancyTrimester > 3 {
			return entities.PatientProfile{}, &riskengine.ValidationError{Field: "pregnancy_trimester", Message: "must be between 1 and 3"}
		}
	}

	for _, check := range []struct {
		field string
		value *float64
	}{
		{"weight_kg", raw.WeightKg},
		{"egfr", raw.EGFR},
		{"potassium", raw.Potassium},
		{"heart_rate", raw.HeartRate},
	} {
		if check.value != nil && *check.value <= 0 {
			return entities.PatientProfile{}, &riskengine.ValidationError{Field: check.field, Message: "must be positive"}
		}
	}

	conditions := canonicalizeList(raw.Conditions)
	flags := n.classifier.Classify(conditions)

	return entities.PatientProfile{
		Age:                raw.Age,
		Sex:                sex,
		WeightKg:           copyFloat(raw.WeightKg),
		Pregnant:           raw.Pregnant,
		PregnancyTrimester: raw.PregnancyTrimester,
		Breastfeeding:      raw.Breastfeeding,
		Conditions:         conditions,
		CurrentMedications: canonicalizeList(raw.CurrentMedications),
		Allergies:          canonicalizeList(raw.Allergies),
		Smoker:             raw.Smoker,
		AlcoholUse:         alcohol,
		EGFR:               copyFloat(raw.EGFR),
		Potassium:          copyFloat(raw.Potassium),
		HeartRate:          copyFloat(raw.HeartRate),
		HistoryGIBleed:     flags.GIBleed,
		HistoryMI:          flags.MI,
		HistoryStroke:      flags.Stroke,
		HistoryArrhythmia:  flags.Arrhythmia,
		HistorySeizures:    flags.Seizures,
	}, nil
}

func normalizeSex(sex string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "":
		return entities.SexUnknown, nil
	case entities.SexMale:
		return entities.SexMale, nil
	case entities.SexFemale:
		return entities.SexFemale, nil
	case entities.SexUnknown:
		return entities.SexUnknown, nil
	default:
		return "", &riskengine.ValidationError{Field: "sex", Message: `must be one of "male", "female" or "unknown"`}
	}
}

func normalizeAlcoholUse(alcoholUse string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(alcoholUse)) {
	case "":
		return entities.AlcoholNone, nil
	case entities.AlcoholNone:
		return entities.AlcoholNone, nil
	case entities.AlcoholLight:
		return entities.AlcoholLight, nil
	case entities.AlcoholModerate:
		return entities.AlcoholModerate, nil
	case entities.AlcoholHeavy:
		return entities.AlcoholHeavy, nil
	default:
		return "", &riskengine.ValidationError{Field: "alcohol_use", Message: `must be one of "none", "light", "moderate" or "heavy"`}
	}
}

// canonicalizeList trims, lowercases, deduplicates and sorts the entries of
// a client-provided list without touching the input slice.
func canonicalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func copyFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
