package domain

// LanguageDetector guesses the language of a text. Detection is diagnostic
// only: implementations never return an error, they report ok=false when
// no reliable guess exists, and callers must not let an absent guess block
// the main pipeline.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}
