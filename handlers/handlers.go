// Package handlers provides HTTP request handlers for the safemed API
// endpoints: drug listing, knowledge base lookups, risk assessment, quick
// checks and health, with input validation and consistent JSON responses.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/safemed/safemed-api/logging"
)

// RespondWithJSON marshals payload and writes it with the standard headers.
// Marshal failures turn into a bare 500 since there is no body to send.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal response payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(body)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// decodeJSONBody decodes a JSON request body strictly. Unknown fields are
// rejected so a misspelled profile field fails the request instead of
// silently defaulting to a less risky profile.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// formatUptimeHuman renders a duration as "2d 5h 3m 12s", dropping leading
// zero units
func formatUptimeHuman(d time.Duration) string {
	total := int(d.Seconds())
	days := total / 86400
	hours := total / 3600 % 24
	minutes := total / 60 % 60
	seconds := total % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 || len(parts) > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 || len(parts) > 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	parts = append(parts, strconv.Itoa(seconds)+"s")

	return strings.Join(parts, " ")
}
