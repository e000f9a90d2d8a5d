package crawler

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	// programmeLabelRe splits "Name (CODE)".
	programmeLabelRe = regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)$`)

	// trailingIDRe extracts the numeric id at the end of a catalog URL.
	trailingIDRe = regexp.MustCompile(`/(\d+)/?$`)

	// durationRe matches "4 roky", "3 years" and similar.
	durationRe = regexp.MustCompile(`(?i)(\d+)\s*(rok[ůy]?|years?)`)

	// yearOfStudyRe matches a following "ročník", which is not a duration.
	yearOfStudyRe = regexp.MustCompile(`^\s*[,.]?\s*ročník`)

	// creditsRe matches "120 ECTS", "120 kreditů", "5 credits".
	creditsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:ects|credits?|kredit)`)
)

// durationMetaSelectors hold the study duration on listing and hub pages.
var durationMetaSelectors = []string{
	".b-branch__meta-title",
	".b-programme__meta",
	".b-meta",
}

// cleanText normalizes s to NFC and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// splitProgrammeLabel splits "Informační technologie (BIT)" into name and code.
// The code is empty when the label has no parenthesized suffix.
func splitProgrammeLabel(label string) (name, code string) {
	label = cleanText(label)
	if m := programmeLabelRe.FindStringSubmatch(label); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return label, ""
}

// trailingID returns the numeric id at the end of a URL path, or "".
func trailingID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if m := trailingIDRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}

// studyDuration finds the standard study duration in sel. Meta elements win;
// otherwise the first duration-like phrase in the text is used.
func studyDuration(sel *goquery.Selection) string {
	for _, selector := range durationMetaSelectors {
		meta := sel.Find(selector).First()
		if meta.Length() == 0 {
			continue
		}
		text := cleanText(meta.Text())
		if durationRe.MatchString(text) {
			return text
		}
	}

	text := cleanText(sel.Text())
	for _, loc := range durationRe.FindAllStringIndex(text, -1) {
		if yearOfStudyRe.MatchString(text[loc[1]:]) {
			continue
		}
		return text[loc[0]:loc[1]]
	}
	return ""
}

// maxCredits returns the largest credit figure mentioned in text, or "".
func maxCredits(text string) string {
	best := -1
	for _, m := range creditsRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		best = max(best, n)
	}
	if best < 0 {
		return ""
	}
	return strconv.Itoa(best)
}

// resolve makes href absolute against base. It returns "" for an empty or
// malformed href.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
