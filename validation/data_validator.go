// Package validation provides input and knowledge base validation for the safemed API.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/riskengine"
)

// Pre-compiled regex patterns for performance optimization
// Compiled once at package initialization and reused for all validations
var (
	// Input validation: alphanumeric + safe punctuation
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+']+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	// strings.Contains is 5-10x faster than regex for these patterns
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${", // Command injection
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://", // Path traversal
		// LDAP injection patterns
		"*)(", "*|(", "*)%", // LDAP injection
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:", // NoSQL injection
	}
)

// knownSeverities are the accepted side effect base severities.
var knownSeverities = map[string]bool{
	entities.SeverityMild:     true,
	entities.SeverityModerate: true,
	entities.SeveritySevere:   true,
}

// reportListCap bounds the per-category name lists in the quality report.
const reportListCap = 10

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateDrugRecord checks if a knowledge base record is valid
func (v *DataValidatorImpl) ValidateDrugRecord(record *entities.DrugRecord) error {
	if record == nil {
		return fmt.Errorf("drug record is nil")
	}

	name := record.DrugName
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("drug record has empty drug_name")
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("drug name not canonical lowercase: %q", name)
	}
	if len(name) > 100 {
		return fmt.Errorf("drug name too long: %d characters", len(name))
	}

	for _, alias := range record.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("empty alias for drug %s", name)
		}
		if alias != strings.ToLower(alias) {
			return fmt.Errorf("alias not canonical lowercase for drug %s: %q", name, alias)
		}
		if len(alias) > 100 {
			return fmt.Errorf("alias too long for drug %s: %d characters", name, len(alias))
		}
	}

	for _, effect := range record.SideEffects {
		if strings.TrimSpace(effect.Name) == "" {
			return fmt.Errorf("empty side effect name for drug %s", name)
		}
		if effect.BaseFrequency < 0 || effect.BaseFrequency > 1 {
			return fmt.Errorf("side effect %q of drug %s has base frequency %g outside [0,1]",
				effect.Name, name, effect.BaseFrequency)
		}
		if !knownSeverities[effect.BaseSeverity] {
			return fmt.Errorf("side effect %q of drug %s has unknown severity %q",
				effect.Name, name, effect.BaseSeverity)
		}
	}

	for category, multiplier := range record.RiskMultipliers {
		if multiplier <= 0 {
			return fmt.Errorf("risk multiplier for category %q of drug %s must be positive, got %g",
				category, name, multiplier)
		}
	}

	// Compile every rule so records with unknown kinds or missing fields
	// are rejected at load time instead of failing requests.
	if err := riskengine.ValidateRules(record); err != nil {
		return fmt.Errorf("invalid rules for drug %s: %w", name, err)
	}

	return nil
}

// ValidateDataIntegrity performs comprehensive knowledge base validation
func (v *DataValidatorImpl) ValidateDataIntegrity(drugs []entities.DrugRecord) error {
	if len(drugs) == 0 {
		return fmt.Errorf("no drug records found")
	}

	nameMap := make(map[string]bool, len(drugs))
	for i := range drugs {
		record := &drugs[i]
		if nameMap[record.DrugName] {
			return fmt.Errorf("duplicate drug name found: %s", record.DrugName)
		}
		nameMap[record.DrugName] = true

		if err := v.ValidateDrugRecord(record); err != nil {
			return fmt.Errorf("invalid drug record %s: %w", record.DrugName, err)
		}
	}
	return nil
}

// ReportDataQuality surveys the knowledge base for non-fatal issues. The
// per-category lists are capped so the report stays loggable.
func (v *DataValidatorImpl) ReportDataQuality(
	drugs []entities.DrugRecord,
	aliasIndex map[string]string,
) *interfaces.KnowledgeQualityReport {
	report := &interfaces.KnowledgeQualityReport{
		DuplicateDrugNames:      []string{},
		DuplicateAliases:        []string{},
		DrugsWithoutSideEffects: []string{},
		DrugsWithoutRules:       []string{},
	}

	// Check 1: Find duplicate canonical names
	nameMap := make(map[string]bool, len(drugs))
	for _, record := range drugs {
		if nameMap[record.DrugName] {
			report.DuplicateDrugNames = append(report.DuplicateDrugNames, record.DrugName)
		}
		nameMap[record.DrugName] = true
	}

	// Check 2: Find aliases claimed by several records, shadowed by a
	// canonical name, or resolving to a different record in the built
	// index. Lookups prefer canonical names, so a shadowed alias never
	// resolves.
	aliasCount := make(map[string]int)
	for _, record := range drugs {
		for _, alias := range record.Aliases {
			aliasCount[alias]++
		}
	}
	reported := make(map[string]bool)
	for _, record := range drugs {
		for _, alias := range record.Aliases {
			if reported[alias] {
				continue
			}
			target, indexed := aliasIndex[alias]
			if aliasCount[alias] > 1 || nameMap[alias] || (indexed && target != record.DrugName) {
				report.DuplicateAliases = append(report.DuplicateAliases, alias)
				reported[alias] = true
			}
		}
	}

	// Check 3: Drugs without side effects (store first 10)
	for _, record := range drugs {
		if len(record.SideEffects) == 0 && len(report.DrugsWithoutSideEffects) < reportListCap {
			report.DrugsWithoutSideEffects = append(report.DrugsWithoutSideEffects, record.DrugName)
		}
	}

	// Check 4: Drugs with no contraindications and no interactions (store first 10)
	for _, record := range drugs {
		if len(record.Contraindications) == 0 && len(record.Interactions) == 0 &&
			len(report.DrugsWithoutRules) < reportListCap {
			report.DrugsWithoutRules = append(report.DrugsWithoutRules, record.DrugName)
		}
	}

	// Check 5: Count side effect frequencies outside [0,1]
	for _, record := range drugs {
		for _, effect := range record.SideEffects {
			if effect.BaseFrequency < 0 || effect.BaseFrequency > 1 {
				report.FrequenciesOutOfRange++
			}
		}
	}

	return report
}

// ValidateInput validates user input strings with enhanced security
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) < 3 {
		return fmt.Errorf("input too short: minimum 3 characters")
	}

	if len(input) > 50 {
		return fmt.Errorf("input too long: maximum 50 characters")
	}

	// Word count validation to prevent DoS attacks with many short words
	words := strings.Fields(input)
	if len(words) > 6 {
		return fmt.Errorf("drug name too complex: maximum 6 words allowed")
	}

	// Check for potentially dangerous patterns using string matching (5-10x faster than regex)
	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	// Allow only alphanumeric characters, spaces, and safe punctuation
	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods and plus sign are allowed")
	}

	// Additional checks for repeated characters (potential DoS)
	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateDrugName validates a client-provided drug name and returns its
// canonical lowercase form for knowledge base lookup.
func (v *DataValidatorImpl) ValidateDrugName(input string) (string, error) {
	if err := v.ValidateInput(input); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(input)), nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
