package analyze

import (
	"fmt"
	"strings"
	"time"

	"cropscan-gateway/internal/identify"
)

// PromptInput is everything the composite prompt deterministically depends
// on. Month is passed in rather than read from the clock so the builder is
// a pure function.
type PromptInput struct {
	Identification *identify.Identification
	Category       string
	Locale         string
	Location       string
	Month          time.Month
	HasCloseUp     bool
}

const resultSchema = `{
  "condition": string,
  "health_status": "Healthy" | "Unhealthy",
  "severity": "Mild" | "Moderate" | "Severe",
  "confidence": number between 0 and 1,
  "symptoms": [string],
  "treatments": [string],
  "prevention": [string],
  "nutritional_issues": {"deficient_nutrients": [string], "recommendations": [string]} or omitted when none,
  "fertilizers": [{"product": string, "dosage": string, "schedule": string}] or omitted when none
}`

// BuildPrompt assembles the composite analysis prompt: identification
// block, locale instruction, crop knowledge, seasonal note, location and
// the strict output schema.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are an experienced tropical agronomist analyzing a photo of a plant for health problems.\n\n")

	if in.Category != "" {
		fmt.Fprintf(&b, "The user labelled the plant as: %s.\n", in.Category)
	}

	if id := in.Identification; id != nil {
		fmt.Fprintf(&b, "A species identification service identified it as %s", id.ScientificName)
		if len(id.CommonNames) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(id.CommonNames, ", "))
		}
		if id.Family != "" {
			fmt.Fprintf(&b, ", family %s", id.Family)
		}
		fmt.Fprintf(&b, " with confidence %.2f. Treat this as a strong hint, not ground truth.\n", id.Confidence)
	} else {
		b.WriteString("No species identification is available; infer the plant from the photo and the user's label.\n")
	}

	var speciesNames []string
	if in.Identification != nil {
		speciesNames = append([]string{in.Identification.ScientificName}, in.Identification.CommonNames...)
	}
	if crop := lookupCrop(append([]string{in.Category}, speciesNames...)...); crop != nil {
		b.WriteString("\nRegional crop knowledge:\n")
		fmt.Fprintf(&b, "- %s\n- %s\n- %s\n- %s\n", crop.Varietals, crop.Regional, crop.Diseases, crop.Deficiency)
	}

	b.WriteString("\n")
	b.WriteString(seasonNote(in.Month))
	b.WriteString("\n")

	if in.Location != "" {
		fmt.Fprintf(&b, "The plant is located in: %s.\n", in.Location)
	}

	if in.HasCloseUp {
		b.WriteString("A second close-up photo of the affected area is attached; use it to confirm symptom details.\n")
	}

	b.WriteString("\nIdentify the most likely disease, pest or deficiency. If the plant looks healthy, say so.\n")
	b.WriteString("When you report a disease or a nutrient deficiency you MUST include concrete treatment and recommendation lists; ")
	b.WriteString("fertilizer recommendations must name specific products (e.g. \"NPK 12:12:17:2\", \"kieserite\"), not generic categories.\n")
	b.WriteString("If health_status is \"Healthy\", severity must be \"Mild\".\n\n")

	switch in.Locale {
	case "ms":
		b.WriteString("Write every free-text field (condition, symptoms, treatments, prevention, recommendations) in Bahasa Melayu. Keep JSON keys and enum values in English exactly as specified.\n\n")
	default:
		b.WriteString("Write every free-text field in clear, simple English suitable for a smallholder farmer.\n\n")
	}

	b.WriteString("Respond with a single JSON object and nothing else, matching exactly this schema:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n")

	return b.String()
}
