package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safemed/safemed-api/data"
	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

// TestDataFactory creates consistent test data across all tests
type TestDataFactory struct{}

func NewTestDataFactory() *TestDataFactory {
	return &TestDataFactory{}
}

// CreateDrugRecord creates a single test record with realistic rules. The
// shape mirrors an NSAID entry: an allergy hard stop, an anticoagulant
// interaction and an elderly demographic risk.
func (f *TestDataFactory) CreateDrugRecord(name string, aliases ...string) entities.DrugRecord {
	return entities.DrugRecord{
		DrugID:    "KB-" + name,
		DrugName:  name,
		DrugClass: "nsaid",
		Aliases:   aliases,
		SideEffects: []entities.SideEffect{
			{Name: "nausea", BaseSeverity: entities.SeverityMild, BaseFrequency: 0.05, FrequencyLabel: "common", RiskCategories: []string{"gi"}},
			{Name: "gastrointestinal haemorrhage", BaseSeverity: entities.SeveritySevere, BaseFrequency: 0.0005, FrequencyLabel: "rare", RiskCategories: []string{"gi", "bleeding"}},
		},
		Contraindications: []entities.ContraindicationRule{
			{
				Kind:         entities.ContraindicationAllergy,
				Reason:       "known hypersensitivity",
				AllergyTerms: []string{name, "nsaid"},
				Alternatives: []string{"acetaminophen"},
			},
		},
		Interactions: []entities.InteractionRule{
			{
				Kind:            entities.InteractionDrug,
				Reason:          "bleeding risk with anticoagulants",
				RiskMultiplier:  3.0,
				InteractingDrug: "warfarin",
				Effect:          "increased bleeding risk",
			},
		},
		DemographicRisks: []entities.DemographicRisk{
			{
				Kind:           entities.DemographicAge,
				Factor:         "age 65 or older",
				RiskMultiplier: 2.0,
				MinAge:         65,
				RiskCategories: []string{"gi"},
			},
		},
		RiskMultipliers: map[string]float64{"gi": 2.5, "bleeding": 3.0},
		Dosing: entities.DosingGuidance{
			MaxDose:    "1200mg per day",
			Monitoring: []string{"renal function"},
		},
	}
}

// CreateDrugRecords creates multiple minimal test records
func (f *TestDataFactory) CreateDrugRecords(count int) []entities.DrugRecord {
	records := make([]entities.DrugRecord, count)
	for i := 0; i < count; i++ {
		records[i] = f.CreateDrugRecord(fmt.Sprintf("drug-%03d", i))
	}
	return records
}

// CreateDrugsMap creates a name map for O(1) lookups
func (f *TestDataFactory) CreateDrugsMap(records []entities.DrugRecord) map[string]entities.DrugRecord {
	drugsMap := make(map[string]entities.DrugRecord, len(records))
	for _, record := range records {
		drugsMap[record.DrugName] = record
	}
	return drugsMap
}

// CreateAliasIndex creates the alias to canonical name index
func (f *TestDataFactory) CreateAliasIndex(records []entities.DrugRecord) map[string]string {
	aliasIndex := make(map[string]string)
	for _, record := range records {
		for _, alias := range record.Aliases {
			if _, exists := aliasIndex[alias]; !exists && alias != record.DrugName {
				aliasIndex[alias] = record.DrugName
			}
		}
	}
	return aliasIndex
}

// CreateDataContainer creates a fully populated data container
func (f *TestDataFactory) CreateDataContainer(drugCount int) *data.DataContainer {
	records := f.CreateDrugRecords(drugCount)

	container := data.NewDataContainer()
	container.UpdateData(records, f.CreateDrugsMap(records), f.CreateAliasIndex(records),
		&interfaces.KnowledgeQualityReport{
			DuplicateDrugNames:      []string{},
			DuplicateAliases:        []string{},
			DrugsWithoutSideEffects: []string{},
			DrugsWithoutRules:       []string{},
		})
	return container
}

// ============================================================================
// MOCK BUILDERS
// ============================================================================

// MockDataStoreBuilder provides fluent interface for building mock data stores
type MockDataStoreBuilder struct {
	mock *MockDataStore
}

func NewMockDataStoreBuilder() *MockDataStoreBuilder {
	return &MockDataStoreBuilder{
		mock: &MockDataStore{
			drugs:       []entities.DrugRecord{},
			drugsMap:    make(map[string]entities.DrugRecord),
			aliasIndex:  make(map[string]string),
			lastUpdated: time.Now(),
			serverStart: time.Now(),
			updating:    false,
		},
	}
}

// WithDrugs sets the records and derives the name and alias indexes the way
// the loader builds them.
func (b *MockDataStoreBuilder) WithDrugs(records []entities.DrugRecord) *MockDataStoreBuilder {
	factory := NewTestDataFactory()
	b.mock.drugs = records
	b.mock.drugsMap = factory.CreateDrugsMap(records)
	b.mock.aliasIndex = factory.CreateAliasIndex(records)
	return b
}

func (b *MockDataStoreBuilder) WithAliasIndex(aliasIndex map[string]string) *MockDataStoreBuilder {
	b.mock.aliasIndex = aliasIndex
	return b
}

func (b *MockDataStoreBuilder) WithUpdating(updating bool) *MockDataStoreBuilder {
	b.mock.updating = updating
	return b
}

func (b *MockDataStoreBuilder) WithLastUpdated(lastUpdated time.Time) *MockDataStoreBuilder {
	b.mock.lastUpdated = lastUpdated
	return b
}

func (b *MockDataStoreBuilder) Build() *MockDataStore {
	return b.mock
}

// MockDataValidatorBuilder provides fluent interface for building mock validators
type MockDataValidatorBuilder struct {
	mock *MockDataValidator
}

func NewMockDataValidatorBuilder() *MockDataValidatorBuilder {
	return &MockDataValidatorBuilder{
		mock: &MockDataValidator{
			validateInputError:  nil,
			validateRecordError: nil,
		},
	}
}

func (b *MockDataValidatorBuilder) WithInputError(err error) *MockDataValidatorBuilder {
	b.mock.validateInputError = err
	return b
}

func (b *MockDataValidatorBuilder) WithRecordError(err error) *MockDataValidatorBuilder {
	b.mock.validateRecordError = err
	return b
}

func (b *MockDataValidatorBuilder) Build() *MockDataValidator {
	return b.mock
}

// MockHealthCheckerBuilder provides fluent interface for building mock health checkers
type MockHealthCheckerBuilder struct {
	mock *MockHealthChecker
}

func NewMockHealthCheckerBuilder() *MockHealthCheckerBuilder {
	return &MockHealthCheckerBuilder{
		mock: &MockHealthChecker{
			status:     "healthy",
			httpStatus: http.StatusOK,
			nextUpdate: time.Now().Add(6 * time.Hour),
		},
	}
}

func (b *MockHealthCheckerBuilder) WithStatus(status string, httpStatus int) *MockHealthCheckerBuilder {
	b.mock.status = status
	b.mock.httpStatus = httpStatus
	return b
}

func (b *MockHealthCheckerBuilder) WithNextUpdate(nextUpdate time.Time) *MockHealthCheckerBuilder {
	b.mock.nextUpdate = nextUpdate
	return b
}

func (b *MockHealthCheckerBuilder) Build() *MockHealthChecker {
	return b.mock
}

// ============================================================================
// HTTP TEST UTILITIES
// ============================================================================

// HTTPTestHelper provides utilities for HTTP handler testing
type HTTPTestHelper struct {
	t *testing.T
}

func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	return &HTTPTestHelper{t: t}
}

// ExecuteRequest executes an HTTP handler with given parameters
func (h *HTTPTestHelper) ExecuteRequest(handler http.HandlerFunc, method, path string, urlParams map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)

	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range urlParams {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// ExecuteJSONRequest executes an HTTP handler with a JSON request body
func (h *HTTPTestHelper) ExecuteJSONRequest(handler http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// AssertJSONResponse asserts that response contains valid JSON with expected status
func (h *HTTPTestHelper) AssertJSONResponse(resp *httptest.ResponseRecorder, expectedStatus int, target any) {
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d", expectedStatus, resp.Code)
	}

	bodyStr := resp.Body.String()
	if bodyStr == "" {
		h.t.Error("Response body should not be empty")
	}

	err := json.Unmarshal([]byte(bodyStr), target)
	if err != nil {
		h.t.Errorf("Response should be valid JSON, got error: %v", err)
	}
}

// AssertErrorResponse asserts that response contains an error with expected status
func (h *HTTPTestHelper) AssertErrorResponse(resp *httptest.ResponseRecorder, expectedStatus int) {
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d", expectedStatus, resp.Code)
	}

	var errorResp map[string]any
	err := json.Unmarshal(resp.Body.Bytes(), &errorResp)
	if err != nil {
		h.t.Errorf("Error response should be valid JSON, got error: %v", err)
	}

	// Check that it has error fields
	if _, ok := errorResp["message"]; !ok {
		h.t.Error("Error response should have message field")
	}
	if _, ok := errorResp["code"]; !ok {
		h.t.Error("Error response should have code field")
	}
}

// AssertErrorMessage asserts the error payload carries an exact message
func (h *HTTPTestHelper) AssertErrorMessage(resp *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	h.AssertErrorResponse(resp, expectedStatus)

	var errorResp map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &errorResp); err != nil {
		return
	}
	if message, ok := errorResp["message"].(string); !ok || message != expectedMessage {
		h.t.Errorf("Expected message %q, got %v", expectedMessage, errorResp["message"])
	}
}

// AssertHealthResponse asserts health check response structure
func (h *HTTPTestHelper) AssertHealthResponse(resp *httptest.ResponseRecorder, expectedHTTPStatus int, expectedStatus string) {
	var response map[string]any
	h.AssertJSONResponse(resp, expectedHTTPStatus, &response)

	if response["status"] != expectedStatus {
		h.t.Errorf("Status mismatch: expected %s, got %v", expectedStatus, response["status"])
	}
	if _, ok := response["data"]; !ok {
		h.t.Error("Response should have data field")
	}
	if _, ok := response["system"]; !ok {
		h.t.Error("Response should have system field")
	}
}

// ============================================================================
// MOCK IMPLEMENTATIONS
// ============================================================================

// MockDataStore implements interfaces.DataStore for testing
type MockDataStore struct {
	drugs       []entities.DrugRecord
	drugsMap    map[string]entities.DrugRecord
	aliasIndex  map[string]string
	report      *interfaces.KnowledgeQualityReport
	lastUpdated time.Time
	serverStart time.Time
	updating    bool

	// Method call tracking
	getDrugsCalled    bool
	resolveCalled     bool
	updateDataCalled  bool
	beginUpdateCalled bool
	endUpdateCalled   bool
}

func (m *MockDataStore) GetDrugs() []entities.DrugRecord {
	m.getDrugsCalled = true
	return m.drugs
}

func (m *MockDataStore) GetDrugsMap() map[string]entities.DrugRecord {
	return m.drugsMap
}

func (m *MockDataStore) GetAliasIndex() map[string]string {
	return m.aliasIndex
}

func (m *MockDataStore) Resolve(name string) (entities.DrugRecord, bool) {
	m.resolveCalled = true
	key := strings.ToLower(strings.TrimSpace(name))
	if record, ok := m.drugsMap[key]; ok {
		return record, true
	}
	if canonical, ok := m.aliasIndex[key]; ok {
		record, found := m.drugsMap[canonical]
		return record, found
	}
	return entities.DrugRecord{}, false
}

func (m *MockDataStore) GetDrugNames() []string {
	names := make([]string, 0, len(m.drugs))
	for _, record := range m.drugs {
		names = append(names, record.DrugName)
	}
	return names
}

func (m *MockDataStore) GetQualityReport() *interfaces.KnowledgeQualityReport {
	if m.report != nil {
		return m.report
	}
	return &interfaces.KnowledgeQualityReport{
		DuplicateDrugNames:      []string{},
		DuplicateAliases:        []string{},
		DrugsWithoutSideEffects: []string{},
		DrugsWithoutRules:       []string{},
	}
}

func (m *MockDataStore) GetLastUpdated() time.Time {
	return m.lastUpdated
}

func (m *MockDataStore) IsUpdating() bool {
	return m.updating
}

func (m *MockDataStore) GetServerStartTime() time.Time {
	return m.serverStart
}

func (m *MockDataStore) UpdateData(drugs []entities.DrugRecord, drugsMap map[string]entities.DrugRecord,
	aliasIndex map[string]string, report *interfaces.KnowledgeQualityReport) {
	m.updateDataCalled = true
	m.drugs = drugs
	m.drugsMap = drugsMap
	m.aliasIndex = aliasIndex
	if report != nil {
		m.report = report
	}
	m.lastUpdated = time.Now()
}

func (m *MockDataStore) BeginUpdate() bool {
	m.beginUpdateCalled = true
	m.updating = true
	return true
}

func (m *MockDataStore) EndUpdate() {
	m.endUpdateCalled = true
	m.updating = false
}

// MockDataValidator implements interfaces.DataValidator for testing
type MockDataValidator struct {
	validateInputError  error
	validateRecordError error

	validateInputCalled bool
	lastValidatedInput  string
}

func (m *MockDataValidator) ValidateDrugRecord(record *entities.DrugRecord) error {
	return m.validateRecordError
}

func (m *MockDataValidator) ValidateDataIntegrity(drugs []entities.DrugRecord) error {
	return m.validateRecordError
}

func (m *MockDataValidator) ReportDataQuality(drugs []entities.DrugRecord, aliasIndex map[string]string) *interfaces.KnowledgeQualityReport {
	return &interfaces.KnowledgeQualityReport{
		DuplicateDrugNames:      []string{},
		DuplicateAliases:        []string{},
		DrugsWithoutSideEffects: []string{},
		DrugsWithoutRules:       []string{},
	}
}

func (m *MockDataValidator) ValidateInput(input string) error {
	m.validateInputCalled = true
	m.lastValidatedInput = input
	if m.validateInputError != nil {
		return m.validateInputError
	}
	// Match real validator: check empty first
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}
	return nil
}

func (m *MockDataValidator) ValidateDrugName(input string) (string, error) {
	if err := m.ValidateInput(input); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(input)), nil
}

// MockProfileNormalizer implements interfaces.ProfileNormalizer for testing.
// With no injected error it passes fields through untouched, so tests that
// need canonicalization should use the real normalizer instead.
type MockProfileNormalizer struct {
	err error
}

func (m *MockProfileNormalizer) Normalize(raw entities.RawProfile) (entities.PatientProfile, error) {
	if m.err != nil {
		return entities.PatientProfile{}, m.err
	}
	return entities.PatientProfile{
		Age:                raw.Age,
		Sex:                raw.Sex,
		Pregnant:           raw.Pregnant,
		PregnancyTrimester: raw.PregnancyTrimester,
		Conditions:         raw.Conditions,
		CurrentMedications: raw.CurrentMedications,
		Allergies:          raw.Allergies,
		Smoker:             raw.Smoker,
		AlcoholUse:         raw.AlcoholUse,
		EGFR:               raw.EGFR,
		Potassium:          raw.Potassium,
		HeartRate:          raw.HeartRate,
	}, nil
}

// MockHealthChecker implements interfaces.HealthChecker for testing
type MockHealthChecker struct {
	status     string
	httpStatus int
	nextUpdate time.Time
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	// Fresh map per call: the handler writes api_version and next_update
	// into it.
	return m.status, map[string]any{
		"drugs":       1,
		"aliases":     2,
		"is_updating": false,
	}, m.httpStatus
}

func (m *MockHealthChecker) CalculateNextUpdate() time.Time {
	return m.nextUpdate
}
