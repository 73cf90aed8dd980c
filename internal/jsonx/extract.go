// Package jsonx extracts the JSON object a language model was asked to
// emit from whatever formatting noise surrounds it in the raw completion.
package jsonx

import (
	"errors"
	"strings"
)

// ErrNoObject indicates no brace-delimited JSON object could be located in
// the text. Callers treat this as a broken provider contract, never as an
// empty result.
var ErrNoObject = errors.New("no JSON object found in text")

// ExtractObject returns the outermost {...} object in s, tolerating code
// fences and prose around it.
func ExtractObject(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", ErrNoObject
}

// stripFences removes markdown code-fence markers (``` and ```json) that
// models habitually wrap payloads in despite instructions not to.
func stripFences(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
