package riskengine

import (
	"reflect"
	"testing"

	"github.com/safemed/safemed-api/drugbase/entities"
)

func TestBuildSummary(t *testing.T) {
	testCases := []struct {
		name       string
		assessment entities.RiskAssessment
		expected   string
	}{
		{
			name: "safe with no findings",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskSafe,
			},
			expected: "ibuprofen appears safe for this profile: no major concerns.",
		},
		{
			name: "single hard stop",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskContraindicated,
				HardStops: []entities.HardStop{{Reason: "NSAID allergy"}},
			},
			expected: "ibuprofen is not recommended for this profile: 1 absolute contraindication.",
		},
		{
			name: "several hard stops",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskContraindicated,
				HardStops: []entities.HardStop{{Reason: "NSAID allergy"}, {Reason: "Third trimester pregnancy"}},
			},
			expected: "ibuprofen is not recommended for this profile: 2 absolute contraindications.",
		},
		{
			name: "hard stops outrank warnings",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskContraindicated,
				HardStops: []entities.HardStop{{Reason: "NSAID allergy"}},
				Warnings:  []entities.RiskFlag{{Reason: "Anticoagulant therapy"}},
			},
			expected: "ibuprofen is not recommended for this profile: 1 absolute contraindication.",
		},
		{
			name: "warnings outrank cautions",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskWarning,
				Warnings: []entities.RiskFlag{{Reason: "Anticoagulant therapy"}, {Reason: "Reduced kidney function"}},
				Cautions: []entities.RiskFlag{{Reason: "Hypertension"}},
			},
			expected: "ibuprofen has notable concerns for this profile: 2 warnings.",
		},
		{
			name: "single caution",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskCaution,
				Cautions: []entities.RiskFlag{{Reason: "Diabetes"}},
			},
			expected: "salbutamol may be used with some caution for this profile: 1 caution.",
		},
		{
			name: "danger phrasing",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskDanger,
				Warnings: []entities.RiskFlag{{Reason: "Anticoagulant therapy"}},
			},
			expected: "ibuprofen poses significant risks for this profile: 1 warning.",
		},
		{
			name: "unknown level falls back to the warning phrase",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskLevel("weird"),
			},
			expected: "ibuprofen has notable concerns for this profile: no major concerns.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Synthesize(tc.assessment).Summary
			if got != tc.expected {
				t.Errorf("Expected summary %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestBuildRecommendation(t *testing.T) {
	testCases := []struct {
		name       string
		assessment entities.RiskAssessment
		expected   string
	}{
		{
			name: "contraindicated with record alternatives",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskContraindicated, CanTake: false,
				HardStops:              []entities.HardStop{{Reason: "NSAID allergy"}},
				AlternativesToConsider: []string{"acetaminophen"},
			},
			expected: "Do not take ibuprofen: NSAID allergy. Consider instead: acetaminophen.",
		},
		{
			name: "contraindicated reasons are joined and alternatives truncated",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskContraindicated, CanTake: false,
				HardStops:              []entities.HardStop{{Reason: "NSAID allergy"}, {Reason: "Third trimester pregnancy"}},
				AlternativesToConsider: []string{"acetaminophen", "paracetamol", "topical diclofenac"},
			},
			expected: "Do not take ibuprofen: NSAID allergy; Third trimester pregnancy. Consider instead: acetaminophen or paracetamol.",
		},
		{
			name: "contraindicated without alternatives",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskContraindicated, CanTake: false,
				RiskScore: 40,
				HardStops: []entities.HardStop{{Reason: "Tachyarrhythmia"}},
			},
			expected: "Do not take salbutamol: Tachyarrhythmia. Consult a healthcare provider about alternatives.",
		},
		{
			name: "dose with monitoring truncated to two",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskCaution, CanTake: true,
				RecommendedMaxDose: "400mg per dose with monitoring",
				MonitoringRequired: []string{"Watch for black stools", "Check blood pressure", "Annual renal panel"},
			},
			expected: "May be taken. Maximum dose: 400mg per dose with monitoring. Monitor: Watch for black stools, Check blood pressure.",
		},
		{
			name: "dose without monitoring",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", OverallRiskLevel: entities.RiskSafe, CanTake: true,
				RecommendedMaxDose: "400mg per dose, max 1200mg/day",
			},
			expected: "May be taken. Maximum dose: 400mg per dose, max 1200mg/day.",
		},
		{
			name: "danger without dose guidance",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskDanger, CanTake: true, RiskScore: 80,
			},
			expected: "High risk for this profile. Do not take this drug without consulting a healthcare provider.",
		},
		{
			name: "warning without dose guidance",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskWarning, CanTake: true, RiskScore: 45,
			},
			expected: "Consult a healthcare provider before taking this drug.",
		},
		{
			name: "caution without dose guidance",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskCaution, CanTake: true, RiskScore: 20,
			},
			expected: "Generally safe for this profile. Watch for the listed side effects.",
		},
		{
			name: "safe without dose guidance",
			assessment: entities.RiskAssessment{
				DrugName: "salbutamol", OverallRiskLevel: entities.RiskSafe, CanTake: true,
			},
			expected: "Follow the standard dosing guidance.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Synthesize(tc.assessment).Recommendation
			if got != tc.expected {
				t.Errorf("Expected recommendation %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestAlternativesFallback(t *testing.T) {
	testCases := []struct {
		name       string
		assessment entities.RiskAssessment
		expected   []string
	}{
		{
			name: "record alternatives pass through",
			assessment: entities.RiskAssessment{
				DrugName: "ibuprofen", RiskScore: 90,
				AlternativesToConsider: []string{"topical diclofenac"},
			},
			expected: []string{"topical diclofenac"},
		},
		{
			name:       "risky analgesic falls back to the substitution list",
			assessment: entities.RiskAssessment{DrugName: "ibuprofen", RiskScore: 60},
			expected:   []string{"acetaminophen", "paracetamol"},
		},
		{
			name:       "fallback matches by name substring",
			assessment: entities.RiskAssessment{DrugName: "ibuprofen lysine", RiskScore: 60},
			expected:   []string{"acetaminophen", "paracetamol"},
		},
		{
			name:       "safety score at the floor suggests nothing",
			assessment: entities.RiskAssessment{DrugName: "ibuprofen", RiskScore: 50},
			expected:   nil,
		},
		{
			name:       "other drug classes get no fallback",
			assessment: entities.RiskAssessment{DrugName: "salbutamol", RiskScore: 90},
			expected:   nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Synthesize(tc.assessment).Alternatives
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Expected alternatives %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSynthesizeDeterminism(t *testing.T) {
	assessment := entities.RiskAssessment{
		DrugName: "ibuprofen", OverallRiskLevel: entities.RiskWarning, CanTake: true, RiskScore: 55,
		Warnings:           []entities.RiskFlag{{Reason: "Anticoagulant therapy"}},
		RecommendedMaxDose: "200mg per dose, max 600mg/day",
		MonitoringRequired: []string{"Watch for black stools"},
	}

	first := Synthesize(assessment)
	for i := 0; i < 10; i++ {
		if next := Synthesize(assessment); !reflect.DeepEqual(first, next) {
			t.Fatalf("Synthesis differed on run %d: %+v vs %+v", i, first, next)
		}
	}
}
