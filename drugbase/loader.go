// Package drugbase loads the drug knowledge base from disk and builds the
// lookup indexes served by the API. Each drug lives in its own JSON document
// under the data directory; an optional frequencies.tsv overrides side effect
// base frequencies with values from pharmacovigilance exports.
package drugbase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/logging"
)

// Loader reads drug documents from a directory on disk.
type Loader struct {
	dataDir string
}

// Compile-time check that Loader implements the KnowledgeLoader interface
var _ interfaces.KnowledgeLoader = (*Loader)(nil)

func NewLoader(dataDir string) *Loader {
	return &Loader{dataDir: dataDir}
}

// LoadKnowledgeBase parses every drug document, applies frequency overrides
// and returns the records together with the name and alias indexes. A
// malformed document fails the whole load so a partially built knowledge
// base is never served; callers keep the previous snapshot on error.
func (l *Loader) LoadKnowledgeBase() ([]entities.DrugRecord, map[string]entities.DrugRecord, map[string]string, error) {
	records, err := l.parseDrugDocuments()
	if err != nil {
		return nil, nil, nil, err
	}

	overrides, err := loadFrequencyOverrides(filepath.Join(l.dataDir, frequenciesFile))
	if err != nil {
		return nil, nil, nil, err
	}
	applied := applyFrequencyOverrides(records, overrides)

	drugsMap, aliasIndex := buildIndexes(records)

	logging.Info("Knowledge base loaded",
		"drugs", len(records),
		"aliases", len(aliasIndex),
		"frequencyOverrides", applied)

	return records, drugsMap, aliasIndex, nil
}

type parseResult struct {
	record entities.DrugRecord
	file   string
	err    error
}

// parseDrugDocuments decodes all *.json documents in the data directory
// concurrently and returns them sorted by drug name.
func (l *Loader) parseDrugDocuments() ([]entities.DrugRecord, error) {
	dirEntries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base directory %s: %w", l.dataDir, err)
	}

	var files []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no drug documents found in %s", l.dataDir)
	}

	results := make(chan parseResult, len(files))
	var wg sync.WaitGroup

	for _, name := range files {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			record, err := parseDrugDocument(filepath.Join(l.dataDir, name))
			results <- parseResult{record: record, file: name, err: err}
		}(name)
	}

	wg.Wait()
	close(results)

	records := make([]entities.DrugRecord, 0, len(files))
	for result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", result.file, result.err)
		}
		records = append(records, result.record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DrugName < records[j].DrugName
	})

	logging.Info("Drug documents parsed", "count", len(records), "dir", l.dataDir)
	return records, nil
}

func parseDrugDocument(path string) (entities.DrugRecord, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return entities.DrugRecord{}, fmt.Errorf("failed to read drug document: %w", err)
	}

	var record entities.DrugRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return entities.DrugRecord{}, fmt.Errorf("failed to decode drug document: %w", err)
	}
	if err := canonicalizeRecord(&record); err != nil {
		return entities.DrugRecord{}, err
	}
	return record, nil
}

// canonicalizeRecord lowercases every field used for matching so lookups and
// rule predicates compare canonical forms only.
func canonicalizeRecord(record *entities.DrugRecord) error {
	record.DrugName = strings.ToLower(strings.TrimSpace(record.DrugName))
	if record.DrugName == "" {
		return fmt.Errorf("drug document has no drug_name")
	}
	if record.DrugID == "" {
		record.DrugID = record.DrugName
	}
	record.DrugClass = strings.ToLower(strings.TrimSpace(record.DrugClass))
	record.Aliases = canonicalizeTerms(record.Aliases)

	for i := range record.SideEffects {
		record.SideEffects[i].Name = strings.ToLower(strings.TrimSpace(record.SideEffects[i].Name))
		record.SideEffects[i].BaseSeverity = strings.ToLower(strings.TrimSpace(record.SideEffects[i].BaseSeverity))
		record.SideEffects[i].RiskCategories = canonicalizeTerms(record.SideEffects[i].RiskCategories)
	}
	for i := range record.Contraindications {
		record.Contraindications[i].Keywords = canonicalizeTerms(record.Contraindications[i].Keywords)
		record.Contraindications[i].AllergyTerms = canonicalizeTerms(record.Contraindications[i].AllergyTerms)
	}
	for i := range record.Interactions {
		record.Interactions[i].Keywords = canonicalizeTerms(record.Interactions[i].Keywords)
		record.Interactions[i].InteractingDrug = strings.ToLower(strings.TrimSpace(record.Interactions[i].InteractingDrug))
		record.Interactions[i].DrugClass = strings.ToLower(strings.TrimSpace(record.Interactions[i].DrugClass))
	}
	return nil
}

// canonicalizeTerms trims, lowercases, deduplicates and sorts a term list.
// Empty entries are dropped.
func canonicalizeTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// buildIndexes maps canonical names and aliases to their records. The first
// record wins on duplicate names; canonical names always shadow aliases
// because Resolve consults the name index first.
func buildIndexes(records []entities.DrugRecord) (map[string]entities.DrugRecord, map[string]string) {
	drugsMap := make(map[string]entities.DrugRecord, len(records))
	aliasIndex := make(map[string]string)

	for _, record := range records {
		if _, exists := drugsMap[record.DrugName]; exists {
			logging.Warn("Duplicate drug name, keeping first record", "drug", record.DrugName)
			continue
		}
		drugsMap[record.DrugName] = record

		for _, alias := range record.Aliases {
			if alias == record.DrugName {
				continue
			}
			if existing, exists := aliasIndex[alias]; exists {
				logging.Warn("Duplicate alias, keeping first mapping",
					"alias", alias,
					"kept", existing,
					"dropped", record.DrugName)
				continue
			}
			aliasIndex[alias] = record.DrugName
		}
	}
	return drugsMap, aliasIndex
}
