// Package riskengine evaluates a patient profile against a drug record from
// the knowledge base and produces a deterministic risk assessment, then
// synthesizes a human-readable recommendation from it. Evaluation is a pure
// function of its inputs: no clock, no randomness, no I/O.
package riskengine

import (
	"fmt"
	"strings"
)

// ValidationError reports client input that failed validation. Handlers map
// it to a 400 response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DrugNotSupportedError reports a drug name that resolves to no record in the
// knowledge base, neither as a canonical name nor as an alias. Handlers map
// it to a 404 response listing the supported drugs.
type DrugNotSupportedError struct {
	DrugName  string
	Supported []string
}

func (e *DrugNotSupportedError) Error() string {
	return fmt.Sprintf("drug %q is not in the knowledge base (supported: %s)",
		e.DrugName, strings.Join(e.Supported, ", "))
}

// EvaluationError reports a knowledge base rule the engine could not apply.
// A rule that cannot be evaluated never degrades into a partial score; the
// whole assessment fails. Handlers map it to a 500 response.
type EvaluationError struct {
	DrugName string
	Reason   string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate %s: %s", e.DrugName, e.Reason)
}
