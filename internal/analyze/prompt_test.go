package analyze

import (
	"strings"
	"testing"
	"time"

	"cropscan-gateway/internal/identify"
)

func TestBuildPromptDeterministic(t *testing.T) {
	in := PromptInput{
		Category: "Banana",
		Locale:   "en",
		Month:    time.January,
	}

	if BuildPrompt(in) != BuildPrompt(in) {
		t.Fatalf("prompt must be deterministic for identical input")
	}
}

func TestBuildPromptIncludesIdentification(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Identification: &identify.Identification{
			ScientificName: "Musa acuminata",
			CommonNames:    []string{"banana"},
			Family:         "Musaceae",
			Confidence:     0.91,
		},
		Category: "Banana",
		Locale:   "en",
		Month:    time.June,
	})

	if !strings.Contains(p, "Musa acuminata") || !strings.Contains(p, "Musaceae") {
		t.Fatalf("identification block missing from prompt:\n%s", p)
	}
}

func TestBuildPromptWithoutIdentification(t *testing.T) {
	p := BuildPrompt(PromptInput{Category: "Banana", Locale: "en", Month: time.June})

	if !strings.Contains(p, "No species identification is available") {
		t.Fatalf("missing-identification note absent from prompt")
	}
}

func TestBuildPromptCropKnowledge(t *testing.T) {
	p := BuildPrompt(PromptInput{Category: "Banana", Locale: "en", Month: time.June})

	if !strings.Contains(p, "Pisang Berangan") || !strings.Contains(p, "Sigatoka") {
		t.Fatalf("banana crop knowledge missing from prompt")
	}

	// Knowledge can also match via the identified species when the
	// category is unknown to the knowledge base.
	p = BuildPrompt(PromptInput{
		Identification: &identify.Identification{ScientificName: "Oryza sativa"},
		Category:       "Unknown",
		Locale:         "en",
		Month:          time.June,
	})
	if !strings.Contains(p, "MR219") {
		t.Fatalf("rice knowledge not matched via identification")
	}

	// Unknown crops simply omit the block.
	p = BuildPrompt(PromptInput{Category: "Dragonfruit", Locale: "en", Month: time.June})
	if strings.Contains(p, "Regional crop knowledge") {
		t.Fatalf("unexpected crop knowledge for unknown category")
	}
}

func TestBuildPromptSeasons(t *testing.T) {
	cases := map[time.Month]string{
		time.December: "northeast monsoon",
		time.February: "northeast monsoon",
		time.July:     "southwest monsoon",
		time.April:    "inter-monsoon",
		time.October:  "inter-monsoon",
	}

	for month, want := range cases {
		p := BuildPrompt(PromptInput{Category: "Rice", Locale: "en", Month: month})
		if !strings.Contains(p, want) {
			t.Fatalf("month %s: expected %q in prompt", month, want)
		}
	}
}

func TestBuildPromptLocale(t *testing.T) {
	en := BuildPrompt(PromptInput{Category: "Chili", Locale: "en", Month: time.June})
	ms := BuildPrompt(PromptInput{Category: "Chili", Locale: "ms", Month: time.June})

	if !strings.Contains(ms, "Bahasa Melayu") {
		t.Fatalf("ms locale instruction missing")
	}
	if strings.Contains(en, "Bahasa Melayu") {
		t.Fatalf("en prompt must not carry the ms instruction")
	}
}

func TestBuildPromptCloseUp(t *testing.T) {
	with := BuildPrompt(PromptInput{Category: "Chili", Locale: "en", Month: time.June, HasCloseUp: true})
	without := BuildPrompt(PromptInput{Category: "Chili", Locale: "en", Month: time.June})

	if !strings.Contains(with, "close-up") {
		t.Fatalf("close-up note missing")
	}
	if strings.Contains(without, "close-up") {
		t.Fatalf("close-up note present without a close-up image")
	}
}
