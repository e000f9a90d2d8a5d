package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/database"
	"github.com/nao1215/vutcrawl/internal/engine"
	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/report"
	"github.com/nao1215/vutcrawl/internal/sink"
	"github.com/nao1215/vutcrawl/internal/state"
)

const catalogListing = `<html><body>
<ul class="c-faculties-list">
  <li class="c-faculties-list__item">
    <div class="b-faculty-list">
      <span class="b-faculty-list__faculty">FIT</span>
      <h2 class="b-faculty-list__title">Fakulta informačních technologií</h2>
    </div>
    <div class="b-programme">
      <h3 class="b-programme__title"><a class="b-programme__link" href="/studenti/programy/program/1">Informační technologie (BIT)</a></h3>
      <p>3 roky</p>
    </div>
  </li>
</ul>
</body></html>`

const catalogProgramme = `<html><body>
<h1>Informační technologie</h1>
<table>
  <caption>1. ročník, zimní semestr</caption>
  <thead><tr><th>Zkr.</th><th>Název</th><th>Kr.</th><th>Pov.</th><th>Uk.</th><th>Sk.</th></tr></thead>
  <tbody>
    <tr><td>IZP</td><td><a href="/predmet/10">Základy programování</a></td><td>7</td><td>P</td><td>ZaZk</td><td>S</td></tr>
    <tr><td>IUS</td><td><a href="/predmet/11">Úvod do softwarového inženýrství</a></td><td>5</td><td>P</td><td>ZaZk</td><td>S</td></tr>
  </tbody>
</table>
</body></html>`

// newCatalogServer serves a one-programme catalog. Subject IUS answers 404
// while broken is set.
func newCatalogServer(t *testing.T, broken *atomic.Bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("/studenti/programy", page(catalogListing))
	mux.HandleFunc("/studenti/programy/program/1", page(catalogProgramme))
	mux.HandleFunc("/predmet/10", page(`<html><body><h1>Základy programování</h1><p>7 kreditů</p></body></html>`))
	mux.HandleFunc("/predmet/11", func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			http.NotFound(w, r)
			return
		}
		page(`<html><body><h1>Úvod do softwarového inženýrství</h1><p>5 kreditů</p></body></html>`)(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeTestConfig writes a config file pointing every directory into dir.
func writeTestConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()

	content := fmt.Sprintf(`locale: cs
delay:
  min: 0s
  max: 0s
timeout: 5s
attempts: 2
baseURL: %q
dataDir: %q
stateDir: %q
sinks:
  - json
  - csv
  - sqlite
`, baseURL, filepath.Join(dir, "data"), filepath.Join(dir, "state"))

	path := filepath.Join(dir, "vutcrawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeJSONReport(t *testing.T, data string) *report.JSONReport {
	t.Helper()

	var doc report.JSONReport
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, data)
	}
	if len(doc.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(doc.Reports))
	}
	return &doc
}

func TestCrawlCommandEndToEnd(t *testing.T) {
	t.Parallel()

	var broken atomic.Bool
	broken.Store(true)
	srv := newCatalogServer(t, &broken)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, srv.URL)

	// First run: one subject is missing.
	stdout, stderr, err := executeRoot(t, "crawl", "--config", configPath, "--json")

	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exitError, got %v\nstderr: %s", err, stderr)
	}
	if exitErr.code != engine.ExitFailures {
		t.Errorf("expected exit code %d, got %d", engine.ExitFailures, exitErr.code)
	}

	first := decodeJSONReport(t, stdout)
	if first.Succeeded {
		t.Error("expected first run to report failure")
	}
	rep := first.Reports[0]
	if rep.Fetched.Programmes != 1 || rep.Fetched.Subjects != 1 {
		t.Errorf("unexpected first run counts: %+v", rep.Fetched)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].ID != model.SubjectID("BIT", "", "IUS") {
		t.Fatalf("expected IUS to fail, got %+v", rep.Failed)
	}
	if rep.Failed[0].Class != model.FetchPermanent {
		t.Errorf("expected permanent failure, got %v", rep.Failed[0].Class)
	}

	if _, err := os.Stat(filepath.Join(dir, "state", "state-cs.json")); err != nil {
		t.Errorf("expected state file: %v", err)
	}

	// Second run resumes and only fetches the missing subject.
	broken.Store(false)
	stdout, stderr, err = executeRoot(t, "crawl", "--config", configPath, "--json")
	if err != nil {
		t.Fatalf("unexpected error on resume: %v\nstderr: %s", err, stderr)
	}

	second := decodeJSONReport(t, stdout)
	rep = second.Reports[0]
	if !second.Succeeded {
		t.Errorf("expected resumed run to succeed: %+v", rep)
	}
	if !rep.Resumed {
		t.Error("expected resumed run")
	}
	if rep.Fetched.Total() != 1 || rep.Fetched.Subjects != 1 {
		t.Errorf("expected only the missing subject to be fetched, got %+v", rep.Fetched)
	}
	if !strings.Contains(stderr, "requests finished") || !strings.Contains(stderr, "fetched=1") {
		t.Errorf("expected request totals in the log, got:\n%s", stderr)
	}

	db, err := database.Open(filepath.Join(dir, "data"), database.Options{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	counts, err := db.Counts(context.Background(), model.LocaleCS)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Programmes != 1 || counts.Subjects != 2 {
		t.Errorf("unexpected stored counts: %+v", counts)
	}

	subjects, err := db.ListSubjects(context.Background(), model.LocaleCS, "BIT", "")
	if err != nil {
		t.Fatal(err)
	}
	var codes []string
	for _, s := range subjects {
		codes = append(codes, s.Code)
	}
	if !slices.Equal(codes, []string{"IUS", "IZP"}) {
		t.Errorf("unexpected stored subjects: %v", codes)
	}

	for _, sub := range []string{"json/cs", "csv/cs"} {
		if _, err := os.Stat(filepath.Join(dir, "data", sub)); err != nil {
			t.Errorf("expected %s output: %v", sub, err)
		}
	}

	// Status reads the saved progress and the stored record counts.
	stdout, _, err = executeRoot(t, "status", "--config", configPath, "--locale", "all")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !bytes.Contains([]byte(stdout), []byte("no state")) {
		t.Errorf("expected en to have no state, got:\n%s", stdout)
	}
	if stored := statusColumn(t, stdout, "cs", -1); stored != "3" {
		t.Errorf("expected 3 stored cs records, got %q in:\n%s", stored, stdout)
	}

	// Show prints the stored study plan.
	stdout, _, err = executeRoot(t, "show", "bit", "--config", configPath)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"BIT", "Základy programování", "Úvod do softwarového inženýrství", "2 subjects"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in show output:\n%s", want, stdout)
		}
	}

	stdout, _, err = executeRoot(t, "show", "BIT", "--config", configPath, "--json")
	if err != nil {
		t.Fatalf("show --json failed: %v", err)
	}
	var view programmeView
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("invalid show JSON: %v\n%s", err, stdout)
	}
	if view.Programme.Code != "BIT" || len(view.Subjects) != 2 {
		t.Errorf("unexpected show JSON: %+v", view)
	}

	_, _, err = executeRoot(t, "show", "NOPE", "--config", configPath)
	if !errors.Is(err, errProgrammeNotStored) {
		t.Errorf("expected errProgrammeNotStored, got %v", err)
	}
}

// statusColumn returns column col of the status row for locale; negative
// columns count from the end.
func statusColumn(t *testing.T, out, locale string, col int) string {
	t.Helper()

	for line := range strings.Lines(out) {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != locale {
			continue
		}
		if col < 0 {
			col += len(fields)
		}
		if col < 0 || col >= len(fields) {
			t.Fatalf("status row %q has no column %d", line, col)
		}
		return fields[col]
	}
	t.Fatalf("no status row for %s in:\n%s", locale, out)
	return ""
}

func TestCrawlCommandRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "inverted delays", args: []string{"--delay-min", "5s", "--delay-max", "1s"}},
		{name: "zero attempts", args: []string{"--attempts", "0"}},
		{name: "unknown locale", args: []string{"--locale", "de"}},
		{name: "unknown sink", args: []string{"--sink", "xml"}},
		{name: "both report formats", args: []string{"--json", "--markdown"}},
		{name: "missing config file", args: []string{"--config", filepath.Join(dir, "missing.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"crawl", "--config", configPath}, tt.args...)
			_, _, err := executeRoot(t, args...)

			var exitErr *exitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("expected exitError, got %v", err)
			}
			if exitErr.code != engine.ExitConfig {
				t.Errorf("expected exit code %d, got %d (%v)", engine.ExitConfig, exitErr.code, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "state")); !os.IsNotExist(err) {
		t.Error("expected no state to be written for invalid configuration")
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override config file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "cfg.yaml")
		content := "locale: en\ndelay:\n  min: 1s\n  max: 2s\nsinks: [csv]\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--delay-max", "3s", "--no-resume"}); err != nil {
			t.Fatal(err)
		}

		cfg, locales, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if !slices.Equal(locales, []model.Locale{model.LocaleEN}) {
			t.Errorf("expected en from config file, got %v", locales)
		}
		if cfg.MinDelay != time.Second || cfg.MaxDelay != 3*time.Second {
			t.Errorf("expected 1s..3s, got %v..%v", cfg.MinDelay, cfg.MaxDelay)
		}
		if cfg.Resume {
			t.Error("expected --no-resume to disable resume")
		}
		if !slices.Equal(cfg.Sinks, []string{config.SinkCSV}) {
			t.Errorf("expected csv sink, got %v", cfg.Sinks)
		}
	})

	t.Run("all locales", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cfg.yaml")
		if err := os.WriteFile(path, []byte("locale: cs\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "-l", "all"}); err != nil {
			t.Fatal(err)
		}

		_, locales, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if !slices.Equal(locales, model.Locales()) {
			t.Errorf("expected every locale, got %v", locales)
		}
	})
}

func TestParseLocales(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []model.Locale
		wantErr bool
	}{
		{in: "cs", want: []model.Locale{model.LocaleCS}},
		{in: "EN", want: []model.Locale{model.LocaleEN}},
		{in: "All", want: []model.Locale{model.LocaleCS, model.LocaleEN}},
		{in: "de", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseLocales(tt.in)
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalidLocale) {
					t.Errorf("expected ErrInvalidLocale, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	ok := &model.CrawlReport{}
	failed := &model.CrawlReport{Failed: []model.FailedNode{{ID: model.ProgrammeID("BIT")}}}
	interrupted := &model.CrawlReport{Interrupted: true}

	tests := []struct {
		name    string
		reports []*model.CrawlReport
		err     error
		want    int
	}{
		{name: "all complete", reports: []*model.CrawlReport{ok, ok}, want: engine.ExitOK},
		{name: "one locale failed", reports: []*model.CrawlReport{ok, failed}, want: engine.ExitFailures},
		{name: "interrupted wins over failures", reports: []*model.CrawlReport{failed, interrupted}, want: engine.ExitInterrupted},
		{name: "fatal error", reports: []*model.CrawlReport{ok}, err: fmt.Errorf("%w: disk full", engine.ErrSink), want: engine.ExitFatal},
		{name: "seed error", err: engine.ErrSeed, want: engine.ExitFailures},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.reports, tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestOutputReportToFile(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.MarkdownReport = true
	cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "crawl.md")

	rep := model.NewCrawlReport(model.LocaleCS)
	rep.FinishedAt = rep.StartedAt.Add(time.Minute)

	if err := outputReport(cfg, []*model.CrawlReport{rep}, &bytes.Buffer{}); err != nil {
		t.Fatalf("outputReport failed: %v", err)
	}

	data, err := os.ReadFile(cfg.ReportFile)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !bytes.Contains(data, []byte("# VUT Catalog Crawl Report")) {
		t.Errorf("expected markdown heading, got:\n%s", data)
	}
}

func TestMergeAndStatusCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	localDir := filepath.Join(dir, "local")
	otherDir := filepath.Join(dir, "other")

	bit := model.Node{ID: model.ProgrammeID("BIT"), Name: "Informační technologie", URL: "https://vut.test/p/1"}
	izp := model.Node{ID: model.SubjectID("BIT", "", "IZP"), Name: "IZP", URL: "https://vut.test/s/10"}
	ius := model.Node{ID: model.SubjectID("BIT", "", "IUS"), Name: "IUS", URL: "https://vut.test/s/11"}

	local := state.New(model.LocaleCS)
	local.Seed([]model.Node{bit})
	local.MarkDone(bit.ID, []model.Node{izp, ius})
	local.RecordFailure(ius.ID, errors.New("status 503"))
	if err := state.NewFileStore(localDir).Save(ctx, local); err != nil {
		t.Fatal(err)
	}

	other := state.New(model.LocaleCS)
	other.Seed([]model.Node{bit})
	other.MarkDone(bit.ID, []model.Node{izp, ius})
	other.MarkDone(izp.ID, nil)
	if err := state.NewFileStore(otherDir).Save(ctx, other); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := executeRoot(t, "status", "--state-dir", localDir, "--locale", "cs", "--config", writeEmptyConfig(t, dir))
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !bytes.Contains([]byte(stdout), []byte("status 503")) {
		t.Errorf("expected failing node in status output, got:\n%s", stdout)
	}

	stdout, _, err = executeRoot(t, "merge", "--from", otherDir, "--state-dir", localDir, "--config", writeEmptyConfig(t, dir))
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !bytes.Contains([]byte(stdout), []byte("en: nothing to merge")) {
		t.Errorf("expected en to be skipped, got:\n%s", stdout)
	}

	merged, err := state.NewFileStore(localDir).Load(ctx, model.LocaleCS)
	if err != nil {
		t.Fatal(err)
	}
	if merged.IsDone(izp.ID) {
		t.Error("expected IZP to stay pending without its record")
	}
	if merged.IsDone(ius.ID) {
		t.Error("expected IUS to stay pending after merge")
	}
	if f := merged.Failures(); len(f) != 1 || f[0].ID != ius.ID {
		t.Errorf("expected the local failure to survive, got %+v", f)
	}

	_, _, err = executeRoot(t, "merge", "--from", localDir, "--state-dir", localDir, "--config", writeEmptyConfig(t, dir))
	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.code != engine.ExitConfig {
		t.Errorf("expected config error when merging a directory into itself, got %v", err)
	}
}

func TestMergeCopiesRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	localState, localData := filepath.Join(dir, "local", "state"), filepath.Join(dir, "local", "data")
	otherState, otherData := filepath.Join(dir, "other", "state"), filepath.Join(dir, "other", "data")

	bit := model.Node{ID: model.ProgrammeID("BIT"), Name: "Informační technologie", URL: "https://vut.test/p/1"}
	izp := model.Node{ID: model.SubjectID("BIT", "", "IZP"), Name: "IZP", URL: "https://vut.test/s/10"}
	ius := model.Node{ID: model.SubjectID("BIT", "", "IUS"), Name: "IUS", URL: "https://vut.test/s/11"}

	local := state.New(model.LocaleCS)
	local.Seed([]model.Node{bit})
	local.MarkDone(bit.ID, []model.Node{izp, ius})
	if err := state.NewFileStore(localState).Save(ctx, local); err != nil {
		t.Fatal(err)
	}
	localJSON := sink.NewJSONSink(filepath.Join(localData, "json"))
	programme := &model.ProgrammeNode{Code: "BIT", Name: bit.Name, URL: bit.URL, Locale: model.LocaleCS}
	if err := localJSON.Write(ctx, programme, model.LocaleCS); err != nil {
		t.Fatal(err)
	}

	// The other crawl finished both subjects but only IZP reached its sink.
	other := state.New(model.LocaleCS)
	other.Seed([]model.Node{bit})
	other.MarkDone(bit.ID, []model.Node{izp, ius})
	other.MarkDone(izp.ID, nil)
	other.MarkDone(ius.ID, nil)
	if err := state.NewFileStore(otherState).Save(ctx, other); err != nil {
		t.Fatal(err)
	}
	subject := &model.SubjectRecord{ProgrammeCode: "BIT", Code: "IZP", Name: "Základy programování", Credits: "7", URL: izp.URL, Locale: model.LocaleCS}
	if err := sink.NewJSONSink(filepath.Join(otherData, "json")).Write(ctx, subject, model.LocaleCS); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := executeRoot(t, "merge",
		"--from", otherState,
		"--from-data", otherData,
		"--state-dir", localState,
		"--data-dir", localData,
		"--locale", "cs",
		"--config", writeEmptyConfig(t, dir),
	)
	if err != nil {
		t.Fatalf("merge failed: %v\nstderr: %s", err, stderr)
	}
	if !bytes.Contains([]byte(stdout), []byte("cs: merged, 1 records copied")) {
		t.Errorf("expected one copied record, got:\n%s", stdout)
	}

	merged, err := state.NewFileStore(localState).Load(ctx, model.LocaleCS)
	if err != nil {
		t.Fatal(err)
	}
	if !merged.IsDone(izp.ID) {
		t.Error("expected IZP to be done once its record was copied")
	}
	if merged.IsDone(ius.ID) {
		t.Error("expected IUS to stay pending without a record")
	}

	done := 0
	for id := range merged.DoneNodes() {
		done++
		if _, err := localJSON.Load(ctx, id, model.LocaleCS); err != nil {
			t.Errorf("done node %s has no local record: %v", id, err)
		}
	}
	if done != 2 {
		t.Errorf("expected 2 done nodes, got %d", done)
	}

	_, _, err = executeRoot(t, "merge", "--from", otherState, "--from-data", localData,
		"--state-dir", localState, "--data-dir", localData, "--config", writeEmptyConfig(t, dir))
	var exitErr *exitError
	if !errors.As(err, &exitErr) || exitErr.code != engine.ExitConfig {
		t.Errorf("expected config error when copying records into their own directory, got %v", err)
	}
}

// writeEmptyConfig keeps a config file in the home directory from leaking
// into a test.
func writeEmptyConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
