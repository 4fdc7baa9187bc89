package drugbase

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/safemed/safemed-api/drugbase/entities"
	"github.com/safemed/safemed-api/logging"
)

// frequenciesFile is the optional TSV next to the drug documents with
// per-drug side effect frequency overrides. Column layout:
// drug_name <TAB> side_effect <TAB> frequency (a probability or a label).
const frequenciesFile = "frequencies.tsv"

// frequencyValues maps the source vocabulary labels to probabilities.
var frequencyValues = map[string]float64{
	"very common": 0.10,
	"common":      0.05,
	"uncommon":    0.005,
	"rare":        0.0005,
	"very rare":   0.00005,
}

type frequencyOverride struct {
	drug   string
	effect string
	value  float64
	label  string
}

// loadFrequencyOverrides parses the overrides TSV. A missing file is not an
// error; the base frequencies in the drug documents are used as-is.
func loadFrequencyOverrides(path string) ([]frequencyOverride, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read frequency overrides: %w", err)
	}

	// Pharmacovigilance exports are not always UTF-8
	var reader io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		logging.Warn("Frequency overrides are not valid UTF-8, decoding as ISO-8859-1", "file", path)
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
	}

	var (
		overrides           []frequencyOverride
		lineCount           int
		skippedEmpty        int
		skippedShortColumns int
		skippedBadFormat    int
	)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineCount++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			skippedEmpty++
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			skippedShortColumns++
			continue
		}

		drug := strings.ToLower(strings.TrimSpace(fields[0]))
		effect := strings.ToLower(strings.TrimSpace(fields[1]))
		value, label, ok := parseFrequency(strings.ToLower(strings.TrimSpace(fields[2])))
		if drug == "" || effect == "" || !ok {
			skippedBadFormat++
			continue
		}

		overrides = append(overrides, frequencyOverride{
			drug:   drug,
			effect: effect,
			value:  value,
			label:  label,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan frequency overrides: %w", err)
	}

	if skippedEmpty > 0 || skippedShortColumns > 0 || skippedBadFormat > 0 {
		logging.Warn("Skipped frequency override lines",
			"file", path,
			"totalLines", lineCount,
			"emptyLines", skippedEmpty,
			"shortColumns", skippedShortColumns,
			"badFormat", skippedBadFormat)
	}
	return overrides, nil
}

// parseFrequency accepts either a vocabulary label or a probability in [0,1].
func parseFrequency(field string) (float64, string, bool) {
	if value, ok := frequencyValues[field]; ok {
		return value, field, true
	}
	value, err := strconv.ParseFloat(field, 64)
	if err != nil || value < 0 || value > 1 {
		return 0, "", false
	}
	return value, "", true
}

// applyFrequencyOverrides replaces the base frequency of every side effect
// with a matching override and returns how many were applied. Overrides for
// unknown drugs or effects are ignored.
func applyFrequencyOverrides(records []entities.DrugRecord, overrides []frequencyOverride) int {
	if len(overrides) == 0 {
		return 0
	}

	index := make(map[string]map[string]frequencyOverride)
	for _, override := range overrides {
		byEffect, ok := index[override.drug]
		if !ok {
			byEffect = make(map[string]frequencyOverride)
			index[override.drug] = byEffect
		}
		byEffect[override.effect] = override
	}

	applied := 0
	for i := range records {
		byEffect, ok := index[records[i].DrugName]
		if !ok {
			continue
		}
		for j := range records[i].SideEffects {
			override, ok := byEffect[records[i].SideEffects[j].Name]
			if !ok {
				continue
			}
			records[i].SideEffects[j].BaseFrequency = override.value
			if override.label != "" {
				records[i].SideEffects[j].FrequencyLabel = override.label
			}
			applied++
		}
	}
	return applied
}
