package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/database"
	"github.com/nao1215/vutcrawl/internal/engine"
	"github.com/nao1215/vutcrawl/internal/model"
)

// errProgrammeNotStored is returned when the database has no row for the
// requested programme.
var errProgrammeNotStored = errors.New("programme not stored")

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show PROGRAMME",
		Short: "Show a stored programme and its subjects",
		Long: `Show prints a programme and its study plan from the sqlite database written
by the sqlite sink. It never contacts the catalog site.

Examples:
  # Programme MITAI with every specialization
  vutcrawl show MITAI

  # Only the subjects of one specialization, in English
  vutcrawl show MITAI --specialization NMAL --locale en

  # Machine-readable output
  vutcrawl show BIT --json`,
		Args: cobra.ExactArgs(1),
		RunE: runShowCmd,
	}

	cmd.Flags().StringP("locale", "l", "",
		"Catalog locale: cs or en (default: locale from config)")
	cmd.Flags().StringP("specialization", "s", "",
		"Only list subjects of this specialization")
	cmd.Flags().String("data-dir", "",
		"Directory holding the sqlite database (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .vutcrawl in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// programmeView is the JSON form of the show command output.
type programmeView struct {
	Programme *model.ProgrammeNode  `json:"programme"`
	UpdatedAt time.Time             `json:"updated_at"`
	Subjects  []model.SubjectRecord `json:"subjects"`
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfg := config.NewConfig()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	if err := applyConfigFile(cfg); err != nil {
		return &exitError{code: engine.ExitConfig, err: err}
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("locale") {
		raw, _ := flags.GetString("locale")
		if cfg.Locale, err = model.ParseLocale(raw); err != nil {
			return &exitError{code: engine.ExitConfig, err: fmt.Errorf("%w: %w", config.ErrInvalidLocale, err)}
		}
	}
	if cfg.DataDir == "" {
		return &exitError{code: engine.ExitConfig, err: config.ErrNoDataDir}
	}

	specialization, err := flags.GetString("specialization")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DataDir, database.Options{})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("%w (run crawl with the sqlite sink first)", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	code := strings.ToUpper(strings.TrimSpace(args[0]))

	stored, err := db.GetProgramme(ctx, cfg.Locale, code)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("%w: %s (%s)", errProgrammeNotStored, code, cfg.Locale)
	}

	subjects, err := db.ListSubjects(ctx, cfg.Locale, code, strings.ToUpper(specialization))
	if err != nil {
		return err
	}

	view := programmeView{
		Programme: &stored.ProgrammeNode,
		UpdatedAt: stored.UpdatedAt,
		Subjects:  subjects,
	}
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printProgramme(cmd.OutOrStdout(), view)
	return nil
}

func printProgramme(w io.Writer, v programmeView) {
	p := v.Programme
	fmt.Fprintf(w, "%s  %s\n", p.Code, p.Name)
	if p.Faculty.Code != "" {
		fmt.Fprintf(w, "Faculty:  %s %s\n", p.Faculty.Code, p.Faculty.Name)
	}
	if p.Duration != "" {
		fmt.Fprintf(w, "Duration: %s\n", p.Duration)
	}
	if len(p.Specializations) > 0 {
		fmt.Fprintf(w, "Specializations: %s\n", strings.Join(p.Specializations, ", "))
	}
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated:  %s\n", v.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)

	if len(v.Subjects) == 0 {
		fmt.Fprintln(w, "No subjects stored.")
		return
	}

	tbl := table.New("Spec", "Code", "Name", "Credits", "Obligation", "Completion", "Semesters", "Year").
		WithWriter(w)
	for _, s := range v.Subjects {
		spec := s.SpecializationCode
		if spec == "" {
			spec = "-"
		}
		tbl.AddRow(spec, s.Code, s.Name, s.Credits, s.Obligation, s.Completion,
			strings.Join(s.Semesters, ","), s.Year)
	}
	tbl.Print()
	fmt.Fprintf(w, "\n%d subjects\n", len(v.Subjects))
}
