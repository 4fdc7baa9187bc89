// Package data provides thread-safe storage for the drug knowledge base.
// It includes the DataContainer struct with atomic operations for
// zero-downtime reloads and thread-safe access methods for drug records,
// name lookups, and alias resolution.
package data

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the knowledge base with atomic pointers for
// zero-downtime reloads. Readers always see a complete snapshot.
type DataContainer struct {
	drugs           atomic.Value // []entities.DrugRecord
	drugsMap        atomic.Value // map[string]entities.DrugRecord
	aliasIndex      atomic.Value // map[string]string
	qualityReport   atomic.Value // *interfaces.KnowledgeQualityReport
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.drugs.Store(make([]entities.DrugRecord, 0))
	dc.drugsMap.Store(make(map[string]entities.DrugRecord))
	dc.aliasIndex.Store(make(map[string]string))
	dc.qualityReport.Store(&interfaces.KnowledgeQualityReport{})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// Thread-safe getters with type check

// GetDrugs returns the list of drug records
func (dc *DataContainer) GetDrugs() []entities.DrugRecord {
	if v := dc.drugs.Load(); v != nil {
		if drugs, ok := v.([]entities.DrugRecord); ok {
			return drugs
		}
	}

	logging.Warn("Drug list is empty or invalid")
	return []entities.DrugRecord{}
}

// GetDrugsMap returns the canonical-name map for O(1) lookups
func (dc *DataContainer) GetDrugsMap() map[string]entities.DrugRecord {
	if v := dc.drugsMap.Load(); v != nil {
		if drugsMap, ok := v.(map[string]entities.DrugRecord); ok {
			return drugsMap
		}
	}

	logging.Warn("DrugsMap is empty or invalid")
	return make(map[string]entities.DrugRecord)
}

// GetAliasIndex returns the alias-to-canonical-name map
func (dc *DataContainer) GetAliasIndex() map[string]string {
	if v := dc.aliasIndex.Load(); v != nil {
		if aliasIndex, ok := v.(map[string]string); ok {
			return aliasIndex
		}
	}

	logging.Warn("AliasIndex is empty or invalid")
	return make(map[string]string)
}

// Resolve looks up a drug by canonical name or brand alias. The input is
// trimmed and lowercased before lookup, so "Advil" resolves the same record
// as "ibuprofen".
func (dc *DataContainer) Resolve(name string) (entities.DrugRecord, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	drugsMap := dc.GetDrugsMap()

	if drug, ok := drugsMap[key]; ok {
		return drug, true
	}

	if canonical, ok := dc.GetAliasIndex()[key]; ok {
		if drug, ok := drugsMap[canonical]; ok {
			return drug, true
		}
	}

	return entities.DrugRecord{}, false
}

// GetDrugNames returns the sorted canonical drug names
func (dc *DataContainer) GetDrugNames() []string {
	drugs := dc.GetDrugs()
	names := make([]string, 0, len(drugs))
	for _, d := range drugs {
		names = append(names, d.DrugName)
	}
	sort.Strings(names)
	return names
}

// GetQualityReport returns the quality report from the last load
func (dc *DataContainer) GetQualityReport() *interfaces.KnowledgeQualityReport {
	if v := dc.qualityReport.Load(); v != nil {
		if report, ok := v.(*interfaces.KnowledgeQualityReport); ok {
			return report
		}
	}

	logging.Warn("Quality report is empty or invalid")
	return &interfaces.KnowledgeQualityReport{}
}

// GetLastUpdated returns the timestamp of the last knowledge base load
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a reload is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the knowledge base in the container
func (dc *DataContainer) UpdateData(drugs []entities.DrugRecord, drugsMap map[string]entities.DrugRecord,
	aliasIndex map[string]string, report *interfaces.KnowledgeQualityReport) {

	// Atomic swap (zero downtime replacement)
	dc.drugs.Store(drugs)
	dc.drugsMap.Store(drugsMap)
	dc.aliasIndex.Store(aliasIndex)
	if report != nil {
		dc.qualityReport.Store(report)
	}
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a reload operation
// Returns true if the reload can proceed, false if another is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
