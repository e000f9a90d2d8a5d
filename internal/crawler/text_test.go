package crawler

import (
	"testing"
)

func TestSplitProgrammeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label    string
		wantName string
		wantCode string
	}{
		{"Informační technologie (BIT)", "Informační technologie", "BIT"},
		{"  Information Technology   (BIT) ", "Information Technology", "BIT"},
		{"Bez kódu", "Bez kódu", ""},
		{"Elektrotechnika (B-EEE) (BPC-EEE)", "Elektrotechnika (B-EEE)", "BPC-EEE"},
	}

	for _, tt := range tests {
		name, code := splitProgrammeLabel(tt.label)
		if name != tt.wantName || code != tt.wantCode {
			t.Errorf("splitProgrammeLabel(%q) = (%q, %q), want (%q, %q)", tt.label, name, code, tt.wantName, tt.wantCode)
		}
	}
}

func TestTrailingID(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://vut.test/studenti/programy/program/1234":  "1234",
		"https://vut.test/studenti/programy/program/1234/": "1234",
		"https://vut.test/program/1234?lang=en":            "1234",
		"https://vut.test/program/abc":                     "",
		"::bad":                                            "",
	}
	for in, want := range tests {
		if got := trailingID(in); got != want {
			t.Errorf("trailingID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStudyDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{name: "meta element", html: `<div><span class="b-meta">4 roky</span><p>2 years</p></div>`, want: "4 roky"},
		{name: "english text", html: `<div><p>Standard length 3 years</p></div>`, want: "3 years"},
		{name: "ročník is not a duration", html: `<div><p>1 ročník, délka 2 roky</p></div>`, want: "2 roky"},
		{name: "none", html: `<div><p>Prezenční</p></div>`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := mustDoc(t, tt.html)
			if got := studyDuration(doc.Find("div").First()); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMaxCredits(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Celkem 120 kreditů, povinné 60 kreditů": "120",
		"180 ECTS":                               "180",
		"5 credits":                              "5",
		"no figures here":                        "",
	}
	for in, want := range tests {
		if got := maxCredits(in); got != want {
			t.Errorf("maxCredits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := mustURL(t, "https://vut.test/studenti/programy/")
	tests := map[string]string{
		"program/1":            "https://vut.test/studenti/programy/program/1",
		"/obor/2":              "https://vut.test/obor/2",
		"  ":                   "",
		"https://other.test/x": "https://other.test/x",
	}
	for in, want := range tests {
		if got := resolve(base, in); got != want {
			t.Errorf("resolve(%q) = %q, want %q", in, got, want)
		}
	}

	if got := resolve(nil, "/a"); got != "/a" {
		t.Errorf("resolve without base = %q", got)
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	// "u" followed by a combining ring composes to "ů".
	if got := cleanText("  roků \n\t x "); got != "roků x" {
		t.Errorf("unexpected %q", got)
	}
}

func TestParseCaption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		caption  string
		year     string
		semester string
	}{
		{"1. ročník, zimní semestr", "1", SemesterWinter},
		{"2. ročník, letní semestr", "2", SemesterSummer},
		{"Libovolný ročník, zimní semestr", AnyYear, SemesterWinter},
		{"1st year, winter semester", "1", SemesterWinter},
		{"Any year, summer semester", AnyYear, SemesterSummer},
		{"Semestr", "", ""},
	}
	for _, tt := range tests {
		year, semester := parseCaption(tt.caption)
		if year != tt.year || semester != tt.semester {
			t.Errorf("parseCaption(%q) = (%q, %q), want (%q, %q)", tt.caption, year, semester, tt.year, tt.semester)
		}
	}
}

func TestMinYear(t *testing.T) {
	t.Parallel()

	tests := []struct{ a, b, want string }{
		{"", "2", "2"},
		{"3", "", "3"},
		{"3", "1", "1"},
		{AnyYear, "2", "2"},
		{"2", AnyYear, "2"},
		{AnyYear, AnyYear, AnyYear},
	}
	for _, tt := range tests {
		if got := minYear(tt.a, tt.b); got != tt.want {
			t.Errorf("minYear(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMapColumns(t *testing.T) {
	t.Parallel()

	cols := mapColumns([]string{"zkr.", "název", "kr.", "unknown", "uk."})
	if cols[colCode] != 0 || cols[colName] != 1 || cols[colCredits] != 2 || cols[colCompletion] != 4 {
		t.Errorf("unexpected mapping %v", cols)
	}
	if _, ok := cols[colGroup]; ok {
		t.Error("group column must be absent")
	}
}
