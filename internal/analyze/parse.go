package analyze

import (
	"encoding/json"
	"errors"
	"fmt"

	"cropscan-gateway/internal/jsonx"
)

// ErrUnparsable indicates the model responded but no valid result object
// could be extracted. This is a contract break with the provider and is
// always surfaced, never silently defaulted: guessing at malformed
// structured output risks fabricated agronomic advice.
var ErrUnparsable = errors.New("unparsable analysis response")

// parseResult extracts and strictly validates the result object from a raw
// completion. It fails closed: missing or invalid required fields are an
// error, not a default.
func parseResult(raw string) (*Result, error) {
	obj, err := jsonx.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	var r Result
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	if r.Condition == "" {
		return nil, fmt.Errorf("%w: missing condition", ErrUnparsable)
	}
	if !r.HealthStatus.Valid() {
		return nil, fmt.Errorf("%w: invalid health_status %q", ErrUnparsable, r.HealthStatus)
	}
	if !r.Severity.Valid() {
		return nil, fmt.Errorf("%w: invalid severity %q", ErrUnparsable, r.Severity)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %f out of range", ErrUnparsable, r.Confidence)
	}

	// A claimed problem with no advice is a broken contract, not a result
	// we can serve.
	if r.HealthStatus == StatusUnhealthy && len(r.Treatments) == 0 {
		return nil, fmt.Errorf("%w: unhealthy result without treatments", ErrUnparsable)
	}
	if ni := r.NutritionalIssues; ni != nil {
		if len(ni.DeficientNutrients) == 0 {
			return nil, fmt.Errorf("%w: nutritional_issues without deficient_nutrients", ErrUnparsable)
		}
		if len(ni.Recommendations) == 0 {
			return nil, fmt.Errorf("%w: nutritional_issues without recommendations", ErrUnparsable)
		}
	}

	return &r, nil
}

// parseAnswer extracts the {"answer": ...} object for the Q&A path.
func parseAnswer(raw string) (string, error) {
	obj, err := jsonx.ExtractObject(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	var payload struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if payload.Answer == "" {
		return "", fmt.Errorf("%w: missing answer", ErrUnparsable)
	}

	return payload.Answer, nil
}
