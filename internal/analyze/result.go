// Package analyze builds the health-analysis prompt, drives the model
// fallback and parses the structured result the model is contracted to
// return.
package analyze

import (
	"cropscan-gateway/internal/identify"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "Healthy"
	StatusUnhealthy HealthStatus = "Unhealthy"
)

func (s HealthStatus) Valid() bool {
	return s == StatusHealthy || s == StatusUnhealthy
}

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

func (s Severity) Valid() bool {
	return s == SeverityMild || s == SeverityModerate || s == SeveritySevere
}

// NutritionalIssues is present only when the model claims a deficiency; the
// parser rejects a claim with empty lists as a contract violation.
type NutritionalIssues struct {
	DeficientNutrients []string `json:"deficient_nutrients"`
	Recommendations    []string `json:"recommendations"`
}

// Fertilizer is a concrete product recommendation, not a generic category.
type Fertilizer struct {
	Product  string `json:"product"`
	Dosage   string `json:"dosage,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// Result is the structured output of the analysis stage. It is created
// once, normalized, and never mutated afterwards.
type Result struct {
	Condition    string       `json:"condition"`
	HealthStatus HealthStatus `json:"health_status"`
	Severity     Severity     `json:"severity"`
	Confidence   float64      `json:"confidence"`

	Symptoms   []string `json:"symptoms"`
	Treatments []string `json:"treatments"`
	Prevention []string `json:"prevention"`

	NutritionalIssues *NutritionalIssues `json:"nutritional_issues,omitempty"`
	Fertilizers       []Fertilizer       `json:"fertilizers,omitempty"`

	// Embedded for traceability; never persisted on its own.
	Identification *identify.Identification `json:"identification,omitempty"`

	Model string `json:"model,omitempty"`
}

// Normalize enforces the invariants the model is instructed to honor but
// cannot be trusted with. A Healthy result is always Mild.
func (r *Result) Normalize() {
	if r.HealthStatus == StatusHealthy {
		r.Severity = SeverityMild
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
}
