package analyze

import (
	"errors"
	"testing"
)

const validPayload = `{
  "condition": "Potassium deficiency",
  "health_status": "Unhealthy",
  "severity": "Moderate",
  "confidence": 0.82,
  "symptoms": ["yellow-orange leaf margins on older leaves"],
  "treatments": ["apply muriate of potash around the root zone"],
  "prevention": ["regular balanced fertilization"],
  "nutritional_issues": {
    "deficient_nutrients": ["potassium"],
    "recommendations": ["split MOP applications monthly"]
  },
  "fertilizers": [{"product": "NPK 12:12:17:2", "dosage": "200g per plant", "schedule": "monthly"}]
}`

func TestParseResultValid(t *testing.T) {
	r, err := parseResult(validPayload)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if r.Condition != "Potassium deficiency" || r.Severity != SeverityModerate {
		t.Fatalf("unexpected result: %#v", r)
	}
	if r.NutritionalIssues == nil || r.NutritionalIssues.DeficientNutrients[0] != "potassium" {
		t.Fatalf("nutritional issues not parsed: %#v", r.NutritionalIssues)
	}
	if len(r.Fertilizers) != 1 || r.Fertilizers[0].Product != "NPK 12:12:17:2" {
		t.Fatalf("fertilizers not parsed: %#v", r.Fertilizers)
	}
}

func TestParseResultFenced(t *testing.T) {
	r, err := parseResult("Sure! Here's the analysis:\n```json\n" + validPayload + "\n```")
	if err != nil {
		t.Fatalf("parseResult with fences: %v", err)
	}
	if r.Condition == "" {
		t.Fatalf("fenced payload not parsed")
	}
}

func TestParseResultFailClosed(t *testing.T) {
	cases := map[string]string{
		"no object":               "the plant looks sick",
		"missing condition":       `{"health_status":"Unhealthy","severity":"Mild","confidence":0.5,"treatments":["x"]}`,
		"bad status":              `{"condition":"rust","health_status":"Sick","severity":"Mild","confidence":0.5,"treatments":["x"]}`,
		"bad severity":            `{"condition":"rust","health_status":"Unhealthy","severity":"Critical","confidence":0.5,"treatments":["x"]}`,
		"confidence out of range": `{"condition":"rust","health_status":"Unhealthy","severity":"Mild","confidence":1.5,"treatments":["x"]}`,
		"unhealthy no treatments": `{"condition":"rust","health_status":"Unhealthy","severity":"Mild","confidence":0.5}`,
		"deficiency no nutrients": `{"condition":"deficiency","health_status":"Unhealthy","severity":"Mild","confidence":0.5,"treatments":["x"],"nutritional_issues":{"deficient_nutrients":[],"recommendations":["y"]}}`,
		"deficiency no advice":    `{"condition":"deficiency","health_status":"Unhealthy","severity":"Mild","confidence":0.5,"treatments":["x"],"nutritional_issues":{"deficient_nutrients":["k"],"recommendations":[]}}`,
	}

	for name, raw := range cases {
		if _, err := parseResult(raw); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("%s: expected ErrUnparsable, got %v", name, err)
		}
	}
}

func TestParseResultHealthyMinimal(t *testing.T) {
	r, err := parseResult(`{"condition":"Healthy plant","health_status":"Healthy","severity":"Mild","confidence":0.9}`)
	if err != nil {
		t.Fatalf("healthy minimal result should parse: %v", err)
	}
	if r.HealthStatus != StatusHealthy {
		t.Fatalf("unexpected status: %s", r.HealthStatus)
	}
}

func TestNormalizeClampsSeverity(t *testing.T) {
	r := &Result{HealthStatus: StatusHealthy, Severity: SeveritySevere, Confidence: 1.2}
	r.Normalize()

	if r.Severity != SeverityMild {
		t.Fatalf("healthy result must be clamped to Mild, got %s", r.Severity)
	}
	if r.Confidence != 1 {
		t.Fatalf("confidence must be clamped to 1, got %f", r.Confidence)
	}
}

func TestParseAnswer(t *testing.T) {
	got, err := parseAnswer("```json\n{\"answer\": \"Water early in the morning.\"}\n```")
	if err != nil {
		t.Fatalf("parseAnswer: %v", err)
	}
	if got != "Water early in the morning." {
		t.Fatalf("unexpected answer: %q", got)
	}

	if _, err := parseAnswer(`{"reply": "nope"}`); !errors.Is(err, ErrUnparsable) {
		t.Fatalf("missing answer field must be unparsable, got %v", err)
	}
}
