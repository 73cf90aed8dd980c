// Package identify resolves an image to a plant species via an ordered
// provider chain. Identification is best-effort: the chain never fails the
// request, it only enriches the analysis prompt when it succeeds.
package identify

import "context"

// Request carries the image plus an optional category hint ("Banana",
// "Rice", ...) used by vision providers as disambiguation context.
type Request struct {
	Image        []byte
	CategoryHint string
	Locale       string
}

// Identification is the top candidate returned by a provider. Absence of an
// identification is represented by a nil *Identification, which is a valid
// outcome of the chain.
type Identification struct {
	ScientificName string   `json:"scientific_name"`
	CommonNames    []string `json:"common_names"`
	Family         string   `json:"family"`
	Genus          string   `json:"genus"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"`
}

// Provider identifies the species in an image. Providers should report
// an empty candidate list as an error; the chain treats a nil result
// without an error as a failed attempt either way.
type Provider interface {
	Name() string
	Identify(ctx context.Context, req Request) (*Identification, error)
}
