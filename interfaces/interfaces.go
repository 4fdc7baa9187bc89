// Package interfaces defines core abstractions for the safemed API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"net/http"
	"time"

	"github.com/safemed/safemed-api/drugbase/entities"
)

// KnowledgeQualityReport summarizes knowledge base issues found during a load.
type KnowledgeQualityReport struct {
	DuplicateDrugNames      []string
	DuplicateAliases        []string
	DrugsWithoutSideEffects []string
	DrugsWithoutRules       []string // no contraindications and no interactions
	FrequenciesOutOfRange   int      // side effect base frequencies outside [0,1]
}

// DataStore defines the contract for knowledge base storage. It provides
// thread-safe access to drug records with atomic operations for
// zero-downtime reloads.
type DataStore interface {
	// Data retrieval methods
	GetDrugs() []entities.DrugRecord
	GetDrugsMap() map[string]entities.DrugRecord
	GetAliasIndex() map[string]string
	Resolve(name string) (entities.DrugRecord, bool)
	GetDrugNames() []string
	GetQualityReport() *KnowledgeQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(drugs []entities.DrugRecord, drugsMap map[string]entities.DrugRecord,
		aliasIndex map[string]string, report *KnowledgeQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// KnowledgeLoader defines the contract for loading the drug knowledge base
// from its backing store into structured records plus lookup indexes.
type KnowledgeLoader interface {
	// LoadKnowledgeBase reads every drug document, applies frequency
	// overrides, and returns the records with their name and alias indexes.
	LoadKnowledgeBase() ([]entities.DrugRecord, map[string]entities.DrugRecord, map[string]string, error)
}

// ProfileNormalizer defines the contract for turning raw client profiles
// into the canonical form the risk engine consumes.
type ProfileNormalizer interface {
	Normalize(raw entities.RawProfile) (entities.PatientProfile, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated knowledge base reloads and system health checks.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	// ServeHTTP implements the http.Handler interface
	ServeHTTP(w http.ResponseWriter, r *http.Request)

	// Specific endpoint handlers
	Index(w http.ResponseWriter, r *http.Request)
	ListDrugs(w http.ResponseWriter, r *http.Request)
	DrugInfo(w http.ResponseWriter, r *http.Request)
	AssessDrug(w http.ResponseWriter, r *http.Request)
	QuickCheck(w http.ResponseWriter, r *http.Request)
	// This will stay in all versions
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, data map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled reload time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for validation operations across the
// knowledge base and user input.
type DataValidator interface {
	// ValidateDrugRecord checks if a drug record is internally consistent
	ValidateDrugRecord(d *entities.DrugRecord) error

	// ValidateDataIntegrity performs comprehensive knowledge base validation
	ValidateDataIntegrity(drugs []entities.DrugRecord) error

	// ReportDataQuality generates a quality report with all issues found
	ReportDataQuality(drugs []entities.DrugRecord, aliasIndex map[string]string) *KnowledgeQualityReport

	// ValidateInput validates user input strings
	ValidateInput(input string) error

	// ValidateDrugName validates and canonicalizes a requested drug name
	ValidateDrugName(input string) (string, error)
}
