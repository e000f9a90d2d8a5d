package model

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Locale is a language variant of the catalog site.
// A crawl always runs in exactly one locale.
type Locale string

const (
	// LocaleCS is the primary (Czech) variant of the site.
	LocaleCS Locale = "cs"

	// LocaleEN is the secondary (English) variant of the site.
	LocaleEN Locale = "en"
)

// ErrUnknownLocale is returned by ParseLocale for unsupported values.
var ErrUnknownLocale = errors.New("unknown locale")

// Locales returns every supported locale in crawl order.
func Locales() []Locale {
	return []Locale{LocaleCS, LocaleEN}
}

// ParseLocale converts user input into a Locale.
// Besides the language codes it accepts "primary" and "secondary".
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cs", "cz", "primary":
		return LocaleCS, nil
	case "en", "secondary":
		return LocaleEN, nil
	default:
		return "", fmt.Errorf("%w: %q (use cs or en)", ErrUnknownLocale, s)
	}
}

// Valid reports whether l is one of the supported locales.
func (l Locale) Valid() bool {
	return l == LocaleCS || l == LocaleEN
}

// Tag returns the BCP 47 language tag of the locale.
func (l Locale) Tag() language.Tag {
	if l == LocaleEN {
		return language.English
	}
	return language.Czech
}

// AcceptLanguage returns an Accept-Language header value preferring the
// locale's language.
func (l Locale) AcceptLanguage() string {
	other := language.English
	if l == LocaleEN {
		other = language.Czech
	}
	return l.Tag().String() + "," + other.String() + ";q=0.9"
}

// ListingPath returns the site path of the programme listing page.
func (l Locale) ListingPath() string {
	if l == LocaleEN {
		return "/en/students/programmes"
	}
	return "/studenti/programy"
}

// String returns the language code.
func (l Locale) String() string {
	return string(l)
}
