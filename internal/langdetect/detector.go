// Package langdetect provides best-effort language detection. Failures
// are swallowed at this boundary: callers get ok=false, never an error.
package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detector guesses the language of a text via trigram analysis.
type Detector struct{}

// New creates a Detector.
func New() *Detector { return &Detector{} }

// Detect returns the ISO 639-1 code of the detected language. ok is false
// for empty input, unreliable guesses, and languages without a two-letter
// code.
func (d *Detector) Detect(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "", false
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return "", false
	}
	return code, true
}
