package entities

import "strings"

// Sex values recognized in patient profiles.
const (
	SexMale    = "male"
	SexFemale  = "female"
	SexUnknown = "unknown"
)

// Alcohol use bands recognized in patient profiles.
const (
	AlcoholNone     = "none"
	AlcoholLight    = "light"
	AlcoholModerate = "moderate"
	AlcoholHeavy    = "heavy"
)

// RawProfile is a patient profile exactly as a client submitted it.
// Free-text lists are untrimmed and case-preserving, and any history flags
// a client may have set are ignored. It must pass through the profile
// normalizer before evaluation.
type RawProfile struct {
	Age                int      `json:"age"`
	Sex                string   `json:"sex,omitempty"`
	WeightKg           *float64 `json:"weight_kg,omitempty"`
	Pregnant           bool     `json:"pregnant"`
	PregnancyTrimester int      `json:"pregnancy_trimester,omitempty"`
	Breastfeeding      bool     `json:"breastfeeding"`
	Conditions         []string `json:"conditions,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	Smoker             bool     `json:"smoker"`
	AlcoholUse         string   `json:"alcohol_use,omitempty"`
	EGFR               *float64 `json:"egfr,omitempty"`
	Potassium          *float64 `json:"potassium,omitempty"`
	HeartRate          *float64 `json:"heart_rate,omitempty"`
}

// PatientProfile is the canonical evaluation context for one request.
// String lists are trimmed, lowercased, deduplicated and sorted. History
// flags are derived from Conditions during normalization and are never
// accepted from client input, so they cannot drift from the condition list.
type PatientProfile struct {
	Age                int      `json:"age"`
	Sex                string   `json:"sex"`
	WeightKg           *float64 `json:"weight_kg,omitempty"`
	Pregnant           bool     `json:"pregnant"`
	PregnancyTrimester int      `json:"pregnancy_trimester,omitempty"`
	Breastfeeding      bool     `json:"breastfeeding"`
	Conditions         []string `json:"conditions"`
	CurrentMedications []string `json:"current_medications"`
	Allergies          []string `json:"allergies"`
	Smoker             bool     `json:"smoker"`
	AlcoholUse         string   `json:"alcohol_use"`
	EGFR               *float64 `json:"egfr,omitempty"`
	Potassium          *float64 `json:"potassium,omitempty"`
	HeartRate          *float64 `json:"heart_rate,omitempty"`

	HistoryGIBleed    bool `json:"history_gi_bleed"`
	HistoryMI         bool `json:"history_mi"`
	HistoryStroke     bool `json:"history_stroke"`
	HistoryArrhythmia bool `json:"history_arrhythmia"`
	HistorySeizures   bool `json:"history_seizures"`
}

// HasConditionContaining reports whether any canonical condition contains
// the given lowercase term.
func (p *PatientProfile) HasConditionContaining(term string) bool {
	return anyContains(p.Conditions, term)
}

// TakesMedicationLike reports whether any current medication matches the
// given lowercase name, exactly or by substring in either direction. The
// loose match mirrors how clients report combination products
// ("aspirin 81mg", "warfarin sodium").
func (p *PatientProfile) TakesMedicationLike(name string) bool {
	if name == "" {
		return false
	}
	for _, med := range p.CurrentMedications {
		if med == name || strings.Contains(med, name) || strings.Contains(name, med) {
			return true
		}
	}
	return false
}

// HasAllergyTo reports whether any recorded allergy contains the given
// lowercase term.
func (p *PatientProfile) HasAllergyTo(term string) bool {
	return anyContains(p.Allergies, term)
}

func anyContains(values []string, term string) bool {
	if term == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(v, term) {
			return true
		}
	}
	return false
}
