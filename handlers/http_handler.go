// Package handlers provides HTTP request handlers for the safemed API endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/logging"
	"github.com/safemed/safemed-api/metrics"
	"github.com/safemed/safemed-api/riskengine"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	normalizer    interfaces.ProfileNormalizer
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.DataValidator,
	normalizer interfaces.ProfileNormalizer,
	healthChecker interfaces.HealthChecker,
) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		normalizer:    normalizer,
		healthChecker: healthChecker,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// This is a placeholder - the actual routing is handled by chi
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// AssessRequest is the body of POST /api/v1/assess.
type AssessRequest struct {
	DrugName string              `json:"drug_name"`
	Profile  entities.RawProfile `json:"profile"`
}

// AssessResponse carries the full assessment plus its synthesized text.
type AssessResponse struct {
	Assessment     entities.RiskAssessment `json:"assessment"`
	Summary        string                  `json:"summary"`
	Recommendation string                  `json:"recommendation"`
	Alternatives   []string                `json:"alternatives"`
}

// QuickCheckRequest is the reduced body of POST /api/v1/quick-check.
type QuickCheckRequest struct {
	DrugName    string   `json:"drug_name"`
	Age         int      `json:"age"`
	Medications []string `json:"medications"`
	Conditions  []string `json:"conditions"`
	Pregnant    bool     `json:"pregnant"`
}

// DrugListResponse lists the supported drugs and their alias mapping.
type DrugListResponse struct {
	Drugs   []string          `json:"drugs"`
	Aliases map[string]string `json:"aliases"`
	Count   int               `json:"count"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string                 `json:"status"`
	LastUpdate    string                 `json:"last_update"`
	DataAgeHours  float64                `json:"data_age_hours"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	UptimeHuman   string                 `json:"uptime_human"`
	Data          map[string]interface{} `json:"data"`
	System        map[string]interface{} `json:"system"`
}

// Index describes the API surface
func (h *HTTPHandlerImpl) Index(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"name":         "safemed-api",
		"description":  "Personalized drug risk assessment",
		"version":      "1.0",
		"drugs_loaded": len(h.dataStore.GetDrugNames()),
		"endpoints": map[string]string{
			"GET /api/v1/drugs":            "List supported drugs and brand name aliases",
			"GET /api/v1/drugs/{drugName}": "Knowledge base record for one drug",
			"POST /api/v1/assess":          "Full risk assessment for a patient profile",
			"POST /api/v1/quick-check":     "Reduced can-take check",
			"GET /health":                  "Service health",
			"GET /metrics":                 "Prometheus metrics",
		},
	}
	RespondWithJSON(w, http.StatusOK, response)
}

// ListDrugs returns the canonical drug names and the alias index. Callers
// use it to decide whether a drug routes to this engine or to their
// fallback.
func (h *HTTPHandlerImpl) ListDrugs(w http.ResponseWriter, r *http.Request) {
	names := h.dataStore.GetDrugNames()
	response := DrugListResponse{
		Drugs:   names,
		Aliases: h.dataStore.GetAliasIndex(),
		Count:   len(names),
	}
	RespondWithJSON(w, http.StatusOK, response)
}

// DrugInfo returns the knowledge base record for one drug, resolving brand
// name aliases to the canonical record.
func (h *HTTPHandlerImpl) DrugInfo(w http.ResponseWriter, r *http.Request) {
	drugName := chi.URLParam(r, "drugName")
	canonical, err := h.validator.ValidateDrugName(drugName)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, ok := h.dataStore.Resolve(canonical)
	if !ok {
		h.respondDrugNotSupported(w, canonical)
		return
	}
	RespondWithJSON(w, http.StatusOK, record)
}

// AssessDrug runs a full risk assessment for the drug and profile in the
// request body.
func (h *HTTPHandlerImpl) AssessDrug(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := decodeJSONBody(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	canonical, err := h.validator.ValidateDrugName(req.DrugName)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, ok := h.dataStore.Resolve(canonical)
	if !ok {
		h.respondDrugNotSupported(w, canonical)
		return
	}

	patient, err := h.normalizer.Normalize(req.Profile)
	if err != nil {
		h.respondProfileError(w, err)
		return
	}

	assessment, err := riskengine.Evaluate(patient, record)
	if err != nil {
		// A rule the engine cannot apply must never pass as a lower
		// score; the request fails instead.
		logging.Error("Risk evaluation failed", "drug", record.DrugName, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to evaluate drug risk")
		return
	}

	synthesis := riskengine.Synthesize(assessment)
	metrics.AssessmentsTotal.WithLabelValues(record.DrugName, string(assessment.OverallRiskLevel)).Inc()

	RespondWithJSON(w, http.StatusOK, AssessResponse{
		Assessment:     assessment,
		Summary:        synthesis.Summary,
		Recommendation: synthesis.Recommendation,
		Alternatives:   synthesis.Alternatives,
	})
}

// QuickCheck runs the reduced assessment: can_take, risk level and score
// only, from the short profile form.
func (h *HTTPHandlerImpl) QuickCheck(w http.ResponseWriter, r *http.Request) {
	var req QuickCheckRequest
	if err := decodeJSONBody(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	canonical, err := h.validator.ValidateDrugName(req.DrugName)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, ok := h.dataStore.Resolve(canonical)
	if !ok {
		h.respondDrugNotSupported(w, canonical)
		return
	}

	patient, err := h.normalizer.Normalize(entities.RawProfile{
		Age:                req.Age,
		Conditions:         req.Conditions,
		CurrentMedications: req.Medications,
		Pregnant:           req.Pregnant,
	})
	if err != nil {
		h.respondProfileError(w, err)
		return
	}

	assessment, err := riskengine.Evaluate(patient, record)
	if err != nil {
		logging.Error("Risk evaluation failed", "drug", record.DrugName, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to evaluate drug risk")
		return
	}

	result := riskengine.QuickCheckOf(assessment)
	metrics.AssessmentsTotal.WithLabelValues(record.DrugName, string(result.RiskLevel)).Inc()

	RespondWithJSON(w, http.StatusOK, result)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// Get memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.dataStore.GetServerStartTime())
	lastUpdate := h.dataStore.GetLastUpdated()
	dataAge := time.Since(lastUpdate)

	status, data, httpStatus := h.healthChecker.HealthCheck()
	data["api_version"] = "1.0"
	data["next_update"] = h.healthChecker.CalculateNextUpdate().Format(time.RFC3339)

	response := HealthResponse{
		Status:        status,
		LastUpdate:    lastUpdate.Format(time.RFC3339),
		DataAgeHours:  dataAge.Hours(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   formatUptimeHuman(uptime),
		Data:          data,
		System: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}

// respondDrugNotSupported writes the 404 payload callers use to route
// unknown drugs to their fallback narrator.
func (h *HTTPHandlerImpl) respondDrugNotSupported(w http.ResponseWriter, drugName string) {
	RespondWithJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":           "drug_not_supported",
		"message":         fmt.Sprintf("drug %q is not in the knowledge base", drugName),
		"supported_drugs": h.dataStore.GetDrugNames(),
	})
}

// respondProfileError maps normalization failures to responses. Validation
// errors are the client's to fix; anything else is an internal failure.
func (h *HTTPHandlerImpl) respondProfileError(w http.ResponseWriter, err error) {
	var validationErr *riskengine.ValidationError
	if errors.As(err, &validationErr) {
		RespondWithError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	logging.Error("Profile normalization failed", "error", err)
	RespondWithError(w, http.StatusInternalServerError, "Failed to normalize profile")
}
