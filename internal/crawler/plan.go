package crawler

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/vutcrawl/internal/model"
)

// Normalized plan values.
const (
	SemesterWinter = "winter"
	SemesterSummer = "summer"
	AnyYear        = "any"
)

var (
	yearCSRe = regexp.MustCompile(`(?i)(\d+)\.\s*ročník`)
	yearENRe = regexp.MustCompile(`(?i)(\d+)(?:\.|st|nd|rd|th)\s+year`)
	anyCSRe  = regexp.MustCompile(`(?i)libovoln`)
	anyENRe  = regexp.MustCompile(`(?i)any\s+year`)
)

// captionKeywords mark a table caption as a study plan block.
var captionKeywords = []string{"ročník", "semestr", "year", "semester"}

// Plan table columns.
const (
	colCode = iota
	colName
	colCredits
	colObligation
	colCompletion
	colGroup
)

// columnHeaders maps lowercased header text (without a trailing dot) to a column.
var columnHeaders = map[string]int{
	"zkratka": colCode, "zkr": colCode, "abbr": colCode, "abbreviation": colCode,
	"název": colName, "nazev": colName, "name": colName, "název (zaměření)": colName, "title": colName,
	"kr": colCredits, "cr": colCredits, "kredity": colCredits, "credits": colCredits, "cred": colCredits,
	"pov": colObligation, "com": colObligation, "povinnost": colObligation, "povinný": colObligation,
	"obligation": colObligation, "type": colObligation,
	"uk": colCompletion, "compl": colCompletion, "ukončení": colCompletion, "zakončení": colCompletion,
	"completion": colCompletion, "exam": colCompletion,
	"sk": colGroup, "gr": colGroup, "skupina": colGroup, "group": colGroup,
}

// planEntry is one subject row of a study plan.
type planEntry struct {
	code string
	name string
	url  string
	row  model.PlanRow
}

// parseCaption derives the year of study and the semester from a plan
// table caption such as "1. ročník, zimní semestr" or "Any year, summer semester".
func parseCaption(caption string) (year, semester string) {
	caption = cleanText(caption)

	switch {
	case yearCSRe.MatchString(caption):
		year = yearCSRe.FindStringSubmatch(caption)[1]
	case anyCSRe.MatchString(caption), anyENRe.MatchString(caption):
		year = AnyYear
	case yearENRe.MatchString(caption):
		year = yearENRe.FindStringSubmatch(caption)[1]
	}

	lower := strings.ToLower(caption)
	switch {
	case strings.Contains(lower, "zimn"), strings.Contains(lower, "winter"):
		semester = SemesterWinter
	case strings.Contains(lower, "letn"), strings.Contains(lower, "summer"):
		semester = SemesterSummer
	}
	return year, semester
}

// mapColumns returns the index of each known column in headers.
func mapColumns(headers []string) map[int]int {
	cols := make(map[int]int)
	for i, h := range headers {
		key := strings.TrimSuffix(strings.TrimSpace(h), ".")
		if col, ok := columnHeaders[key]; ok {
			if _, seen := cols[col]; !seen {
				cols[col] = i
			}
		}
	}
	return cols
}

// parsePlan extracts the subjects of every study plan table in doc.
// A subject listed in several tables is merged into one entry.
func parsePlan(doc *goquery.Document, base *url.URL) []planEntry {
	var raw []planEntry

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		caption := table.Find("caption").First()
		if caption.Length() == 0 {
			return
		}
		captionText := caption.Text()
		lower := strings.ToLower(captionText)
		if !slices.ContainsFunc(captionKeywords, func(kw string) bool { return strings.Contains(lower, kw) }) {
			return
		}

		var headers []string
		table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, strings.ToLower(cleanText(th.Text())))
		})
		if len(headers) == 0 {
			return
		}
		joined := strings.Join(headers, " ")
		if !strings.Contains(joined, "zkr") && !strings.Contains(joined, "abbr") {
			return
		}

		cols := mapColumns(headers)
		year, semester := parseCaption(captionText)

		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() < 3 {
				return
			}
			entry, ok := parsePlanRow(cells, cols, base)
			if !ok {
				return
			}
			entry.row.Year = year
			if semester != "" {
				entry.row.Semesters = []string{semester}
			}
			raw = append(raw, entry)
		})
	})

	return mergePlanEntries(raw)
}

func parsePlanRow(cells *goquery.Selection, cols map[int]int, base *url.URL) (planEntry, bool) {
	cell := func(col int) *goquery.Selection {
		idx, ok := cols[col]
		if !ok || idx >= cells.Length() {
			return nil
		}
		return cells.Eq(idx)
	}
	text := func(col int) string {
		if c := cell(col); c != nil {
			return cleanText(c.Text())
		}
		return ""
	}

	entry := planEntry{
		code: text(colCode),
		name: text(colName),
		row: model.PlanRow{
			Credits:    text(colCredits),
			Obligation: text(colObligation),
			Completion: text(colCompletion),
			Group:      text(colGroup),
		},
	}
	if entry.code == "" && entry.name == "" {
		return planEntry{}, false
	}

	for _, col := range []int{colName, colCode} {
		c := cell(col)
		if c == nil {
			continue
		}
		link := c.Find("a[href]").First()
		if link.Length() == 0 {
			continue
		}
		href, _ := link.Attr("href")
		if entry.url = resolve(base, href); entry.url != "" {
			if entry.name == "" {
				entry.name = cleanText(link.Text())
			}
			break
		}
	}
	return entry, true
}

// mergePlanEntries folds duplicate codes: semesters are unioned and the
// lowest numeric year wins over "any". Entries without a code are kept as is.
func mergePlanEntries(raw []planEntry) []planEntry {
	merged := make([]planEntry, 0, len(raw))
	index := make(map[string]int)

	for _, e := range raw {
		if e.code == "" {
			merged = append(merged, e)
			continue
		}
		i, ok := index[e.code]
		if !ok {
			index[e.code] = len(merged)
			merged = append(merged, e)
			continue
		}

		existing := &merged[i]
		for _, s := range e.row.Semesters {
			if !slices.Contains(existing.row.Semesters, s) {
				existing.row.Semesters = append(existing.row.Semesters, s)
			}
		}
		existing.row.Year = minYear(existing.row.Year, e.row.Year)
		if existing.url == "" {
			existing.url = e.url
		}
	}
	return merged
}

// minYear returns the lower year of study. Numeric years beat "any".
func minYear(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return strconv.Itoa(min(na, nb))
	case errA == nil:
		return a
	case errB == nil:
		return b
	default:
		return a
	}
}
