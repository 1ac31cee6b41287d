package protocol

import (
	"fmt"
	"strings"

	"github.com/devnovikov/algoroom/internal/common/cnst"
)

var defaultSnippets = map[Language]string{
	LanguageJavaScript: "// Write your JavaScript code here\nconsole.log('Hello, World!');\n",
	LanguagePython:     "# Write your Python code here\nprint('Hello, World!')\n",
}

// Languages lists the supported languages in display order
func Languages() []Language {
	return []Language{LanguageJavaScript, LanguagePython}
}

func (l Language) String() string {
	return string(l)
}

// Valid reports whether l is one of the supported languages
func (l Language) Valid() bool {
	_, ok := defaultSnippets[l]
	return ok
}

// ParseLanguage parses a language name, case-insensitively. An empty name
// yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return DefaultLanguage, nil
	}
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", cnst.ErrInvalidLanguage, s)
	}
	return l, nil
}

// DefaultSnippet returns the starter code shown for a language that has no
// code yet
func DefaultSnippet(l Language) string {
	return defaultSnippets[l]
}
