package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// ImageKey derives the content-addressed key for an image analysis.
// The digest covers the raw image bytes plus the locale: any byte
// difference (including a re-encode of the same photo) is a different
// entry. Images are deliberately not normalized — there is no reliable
// content-similarity function to collapse near-duplicates with.
func ImageKey(image []byte, locale, versionID string) Key {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte("|locale:" + locale))

	return Key{
		Kind:      KindAnalysis,
		Locale:    locale,
		VersionID: versionID,
		Hash:      hex.EncodeToString(h.Sum(nil)),
	}
}

// QuestionKey derives the key for a free-text question. Unlike images,
// questions are normalized first so that near-duplicate phrasings of the
// same question collapse to one entry ("Is this safe?" == "is this safe").
func QuestionKey(question, locale, versionID string) Key {
	normalized := NormalizeQuestion(question)

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte("|locale:" + locale))

	return Key{
		Kind:      KindQuestion,
		Locale:    locale,
		VersionID: versionID,
		Hash:      hex.EncodeToString(h.Sum(nil)),
	}
}

// NormalizeQuestion lower-cases, strips punctuation and collapses
// whitespace runs to a single space.
func NormalizeQuestion(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	lastSpace := true // also trims leading whitespace
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}
