package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLanguage is returned when an insight language is not supported.
var ErrUnknownLanguage = errors.New("unknown language")

// Language is an advisory output language accepted by the insight endpoint.
type Language string

const (
	English Language = "English"
	Hindi   Language = "Hindi"
	Marathi Language = "Marathi"
)

// Languages lists the supported languages in display order.
var Languages = []Language{English, Hindi, Marathi}

// ParseLanguage accepts a language name in any letter case.
// An empty string yields English.
func ParseLanguage(s string) (Language, error) {
	if strings.TrimSpace(s) == "" {
		return English, nil
	}
	for _, l := range Languages {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}
