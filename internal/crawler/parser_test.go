package crawler

import (
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/vutcrawl/internal/model"
)

const listingHTML = `<html><body>
<ul class="c-faculties-list">
  <li class="c-faculties-list__item">
    <div class="b-faculty-list">
      <span class="b-faculty-list__faculty">FIT</span>
      <h2 class="b-faculty-list__title">Fakulta informačních   technologií</h2>
    </div>
    <div class="b-programme">
      <h3 class="b-programme__title"><a class="b-programme__link" href="/studenti/programy/program/1234">Informační technologie a umělá inteligence (MITAI)</a></h3>
      <p class="b-programme__meta">2 roky</p>
    </div>
    <div class="b-programme">
      <h3 class="b-programme__title"><a class="b-programme__link" href="/studenti/programy/program/5678">Bez kódu</a></h3>
      <p>Standardní délka studia 3 roky, 1. ročník</p>
    </div>
    <div class="b-programme">
      <h3 class="b-programme__title"><a class="b-programme__link" href="">Rozbitý (BRK)</a></h3>
    </div>
  </li>
  <li class="c-faculties-list__item">
    <div class="b-programme">
      <h3 class="b-programme__title"><a class="b-programme__link" href="/studenti/programy/program/9">Bez fakulty (NOFAC)</a></h3>
    </div>
  </li>
</ul>
</body></html>`

const hubHTML = `<html><body>
<h1>Informační technologie a umělá inteligence</h1>
<p>Celkem 120 kreditů</p>
<h3>Specializace</h3>
<table class="data">
  <thead><tr><th>Zkratka</th><th>Název</th><th>Délka</th></tr></thead>
  <tbody>
    <tr><td>NMAL</td><td><a href="/obor/1">Strojové učení</a></td><td>2 roky</td></tr>
    <tr><td>---</td><td><a href="/obor/77">Bez zkratky</a></td><td>2 roky</td></tr>
    <tr><td>NOLINK</td><td>Text</td></tr>
    <tr><td>X</td></tr>
  </tbody>
</table>
</body></html>`

const planHTML = `<html><body>
<h1>Strojové učení</h1>
<table>
  <caption>1. ročník, zimní semestr</caption>
  <thead><tr><th>Zkr.</th><th>Název</th><th>Kr.</th><th>Pov.</th><th>Uk.</th><th>Sk.</th></tr></thead>
  <tbody>
    <tr><td>SUI</td><td><a href="/predmet/100">Umělá inteligence</a></td><td>5</td><td>P</td><td>ZaZk</td><td>S</td></tr>
    <tr><td><a href="/predmet/200">BAYa</a></td><td>Bayesovské modely</td><td>5</td><td>PV</td><td>Zk</td><td>A</td></tr>
    <tr><td></td><td>Bez kódu</td><td>3</td></tr>
  </tbody>
</table>
<table>
  <caption>Libovolný ročník, letní semestr</caption>
  <thead><tr><th>Zkr.</th><th>Název</th><th>Kr.</th><th>Pov.</th><th>Uk.</th><th>Sk.</th></tr></thead>
  <tbody>
    <tr><td>SUI</td><td><a href="/predmet/100">Umělá inteligence</a></td><td>5</td><td>P</td><td>ZaZk</td><td>S</td></tr>
    <tr><td>NOURL</td><td>Bez odkazu</td><td>4</td><td>V</td><td>Zk</td><td>C</td></tr>
  </tbody>
</table>
<table>
  <caption>Poznámky</caption>
  <thead><tr><th>Zkr.</th><th>Text</th><th>X</th></tr></thead>
  <tbody><tr><td>IGN</td><td><a href="/predmet/999">Ignored</a></td><td>1</td></tr></tbody>
</table>
</body></html>`

const subjectHTML = `<html><head><title>Fallback</title></head><body>
<h1>Umělá  inteligence</h1>
<p>Kredity: 5 kreditů</p>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", raw, err)
	}
	return u
}

func TestParseListing(t *testing.T) {
	t.Parallel()

	page, err := NewParser().ParseListing(mustDoc(t, listingHTML), mustURL(t, "https://vut.test/studenti/programy"))
	if err != nil {
		t.Fatalf("ParseListing failed: %v", err)
	}

	if len(page.Programmes) != 2 {
		t.Fatalf("expected 2 programmes, got %d: %+v", len(page.Programmes), page.Programmes)
	}

	mitai := page.Programmes[0]
	if mitai.ID != model.ProgrammeID("MITAI") {
		t.Errorf("expected MITAI, got %s", mitai.ID)
	}
	if mitai.Name != "Informační technologie a umělá inteligence" {
		t.Errorf("unexpected name %q", mitai.Name)
	}
	if mitai.URL != "https://vut.test/studenti/programy/program/1234" {
		t.Errorf("unexpected URL %q", mitai.URL)
	}
	if mitai.Faculty == nil || mitai.Faculty.Code != "FIT" || mitai.Faculty.Name != "Fakulta informačních technologií" {
		t.Errorf("unexpected faculty %+v", mitai.Faculty)
	}
	if mitai.Duration != "2 roky" {
		t.Errorf("expected duration '2 roky', got %q", mitai.Duration)
	}

	noCode := page.Programmes[1]
	if noCode.ID != model.ProgrammeID("5678") {
		t.Errorf("expected code from URL, got %s", noCode.ID)
	}
	if noCode.Name != "Bez kódu" {
		t.Errorf("unexpected name %q", noCode.Name)
	}
	if noCode.Duration != "3 roky" {
		t.Errorf("expected duration '3 roky', got %q", noCode.Duration)
	}
	if noCode.Faculty == mitai.Faculty {
		t.Error("programmes must not share a faculty pointer")
	}
}

func TestParseListingWithoutFacultyList(t *testing.T) {
	t.Parallel()

	_, err := NewParser().ParseListing(mustDoc(t, "<html><body><p>maintenance</p></body></html>"), nil)
	if err == nil {
		t.Fatal("expected error for page without faculty list")
	}
}

func TestParseProgrammeHub(t *testing.T) {
	t.Parallel()

	page := NewParser().ParseProgramme(mustDoc(t, hubHTML), mustURL(t, "https://vut.test/program/1234"), model.ProgrammeID("MITAI"))

	if !page.HasSpecializations() {
		t.Fatal("expected a specialization hub")
	}
	if page.Title != "Informační technologie a umělá inteligence" {
		t.Errorf("unexpected title %q", page.Title)
	}
	if page.Credits != "120" {
		t.Errorf("expected credits 120, got %q", page.Credits)
	}
	if len(page.Subjects) != 0 {
		t.Errorf("hub must not list subjects, got %d", len(page.Subjects))
	}

	want := []model.NodeID{
		model.SpecializationID("MITAI", "NMAL"),
		model.SpecializationID("MITAI", "77"),
	}
	if len(page.Specializations) != len(want) {
		t.Fatalf("expected %d specializations, got %+v", len(want), page.Specializations)
	}
	for i, id := range want {
		if page.Specializations[i].ID != id {
			t.Errorf("specialization %d: expected %s, got %s", i, id, page.Specializations[i].ID)
		}
	}

	nmal := page.Specializations[0]
	if nmal.Name != "Strojové učení" || nmal.URL != "https://vut.test/obor/1" || nmal.Duration != "2 roky" {
		t.Errorf("unexpected specialization %+v", nmal)
	}
}

func TestParseProgrammePlan(t *testing.T) {
	t.Parallel()

	page := NewParser().ParseProgramme(mustDoc(t, planHTML), mustURL(t, "https://vut.test/program/42"), model.ProgrammeID("BIT"))

	if page.HasSpecializations() {
		t.Fatal("plan page must not be a hub")
	}
	ids := make([]model.NodeID, 0, len(page.Subjects))
	for _, n := range page.Subjects {
		ids = append(ids, n.ID)
	}
	want := []model.NodeID{
		model.SubjectID("BIT", "", "SUI"),
		model.SubjectID("BIT", "", "BAYa"),
	}
	if !slices.Equal(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestParseSpecializationPlan(t *testing.T) {
	t.Parallel()

	page := NewParser().ParseSpecialization(mustDoc(t, planHTML), mustURL(t, "https://vut.test/obor/1"), model.SpecializationID("MITAI", "NMAL"))

	if page.Title != "Strojové učení" {
		t.Errorf("unexpected title %q", page.Title)
	}
	if len(page.Subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %+v", page.Subjects)
	}

	sui := page.Subjects[0]
	if sui.ID != model.SubjectID("MITAI", "NMAL", "SUI") {
		t.Errorf("unexpected id %s", sui.ID)
	}
	if sui.URL != "https://vut.test/predmet/100" {
		t.Errorf("unexpected URL %q", sui.URL)
	}
	if sui.PlanRow == nil {
		t.Fatal("expected plan row")
	}
	if sui.PlanRow.Year != "1" {
		t.Errorf("expected year 1, got %q", sui.PlanRow.Year)
	}
	if !slices.Equal(sui.PlanRow.Semesters, []string{SemesterWinter, SemesterSummer}) {
		t.Errorf("unexpected semesters %v", sui.PlanRow.Semesters)
	}
	if sui.PlanRow.Credits != "5" || sui.PlanRow.Obligation != "P" || sui.PlanRow.Completion != "ZaZk" || sui.PlanRow.Group != "S" {
		t.Errorf("unexpected plan row %+v", sui.PlanRow)
	}

	baya := page.Subjects[1]
	if baya.Name != "Bayesovské modely" || baya.URL != "https://vut.test/predmet/200" {
		t.Errorf("unexpected subject %+v", baya)
	}
}

func TestParseSubject(t *testing.T) {
	t.Parallel()

	page := NewParser().ParseSubject(mustDoc(t, subjectHTML))
	if page.Title != "Umělá inteligence" {
		t.Errorf("unexpected title %q", page.Title)
	}
	if page.Credits != "5" {
		t.Errorf("expected credits 5, got %q", page.Credits)
	}

	page = NewParser().ParseSubject(mustDoc(t, "<html><head><title>Jen titulek</title></head><body></body></html>"))
	if page.Title != "Jen titulek" {
		t.Errorf("expected title fallback, got %q", page.Title)
	}
}

func TestParseDispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind model.NodeKind
		node model.NodeID
		html string
		want model.NodeKind
	}{
		{name: "listing", kind: model.KindListing, html: listingHTML, want: model.KindListing},
		{name: "programme", kind: model.KindProgramme, node: model.ProgrammeID("MITAI"), html: hubHTML, want: model.KindProgramme},
		{name: "specialization", kind: model.KindSpecialization, node: model.SpecializationID("MITAI", "NMAL"), html: planHTML, want: model.KindSpecialization},
		{name: "subject", kind: model.KindSubject, node: model.SubjectID("MITAI", "NMAL", "SUI"), html: subjectHTML, want: model.KindSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := model.FetchRequest{Kind: tt.kind, Node: tt.node, Locale: model.LocaleCS}
			doc, err := NewParser().Parse(strings.NewReader(tt.html), req, "https://vut.test/page")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if doc.DocumentKind() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, doc.DocumentKind())
			}
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		_, err := NewParser().Parse(strings.NewReader(subjectHTML), model.FetchRequest{Kind: model.NodeKind(42)}, "https://vut.test/")
		if err == nil {
			t.Fatal("expected error for unknown kind")
		}
	})
}
