package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/folio/internal/analysis"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/content"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
	"github.com/kalambet/folio/internal/resume"
	"github.com/kalambet/folio/internal/storage"
)

// requestTimeout bounds one-shot commands that call out to the record store.
const requestTimeout = 2 * time.Minute

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Print the knowledge summary the agent is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/knowledge")
		if err != nil {
			return err
		}
		text, err := readText(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List recently saved visitor conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/conversations?limit=%d", limit))
		if err != nil {
			return err
		}

		var body struct {
			Conversations []record.VisitorRecord `json:"conversations"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		printConversations(cmd.OutOrStdout(), body.Conversations)
		return nil
	},
}

func init() {
	conversationsCmd.Flags().Int("limit", recorder.DefaultLimit, "maximum number of conversations to list")
}

func printConversations(w io.Writer, recs []record.VisitorRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No conversations found.")
		return
	}
	for _, r := range recs {
		flag := " "
		if r.FollowUpRequired {
			flag = colorize(colorYellow, "!")
		}
		summary := r.Annotation.Summary
		if len(summary) > 80 {
			summary = summary[:80] + "..."
		}
		fmt.Fprintf(w, "%s %s  %s <%s>  %s  %s\n",
			flag,
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			colorize(colorBold, r.Name),
			r.Email,
			colorize(colorCyan, string(r.Annotation.Sentiment)),
			summary,
		)
	}
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a transcript file without saving it",
	Long: `Analyze a transcript file without saving it.

The file is a JSON array of {"role": "user"|"assistant", "content": "..."}.

Examples:
  folio analyze --file turns.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		turns, err := readTurns(file)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		gen, err := newGenerator(cmd.Context(), cfg, stderr)
		if err != nil {
			return err
		}

		a := analysis.New(gen).Analyze(cmd.Context(), turns)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			record.Annotation
			FollowUpRequired bool `json:"follow_up_required"`
		}{a, a.FollowUpRequired()})
	},
}

func init() {
	analyzeCmd.Flags().String("file", "", "JSON transcript file")
}

func readTurns(path string) ([]record.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	var raw []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing transcript: %w", err)
	}
	turns := make([]record.Turn, 0, len(raw))
	for i, t := range raw {
		role, ok := record.ParseRole(t.Role)
		if !ok {
			return nil, fmt.Errorf("turn %d: unknown role %q", i+1, t.Role)
		}
		turns = append(turns, record.Turn{Role: role, Content: t.Content})
	}
	return turns, nil
}

// --- seed ---

// recordFile is the YAML layout shared by `seed` and `resume`.
type recordFile struct {
	Records []record.PortfolioRecord `yaml:"records"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Validate portfolio records from a YAML file and insert them",
	Long: `Validate portfolio records from a YAML file and insert them.

Every record is validated before anything is written.

Examples:
  folio seed --file records.yaml --dry-run
  folio seed --file records.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		recs, err := loadRecords(file)
		if err != nil {
			return err
		}
		printSuccess("%d records valid", len(recs))
		if dryRun {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Notion.PortfolioDB == "" {
			return config.Missing("notion.portfolio_db")
		}
		nc, err := newNotion(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		return seedRecords(ctx, nc, cfg.Notion.PortfolioDB, recs)
	},
}

func init() {
	seedCmd.Flags().String("file", "", "YAML file with a top-level records list")
	seedCmd.Flags().Bool("dry-run", false, "validate only")
}

func loadRecords(path string) ([]record.PortfolioRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}

	var problems []string
	recs := make([]record.PortfolioRecord, 0, len(f.Records))
	for i, r := range f.Records {
		r = r.WithDefaults()
		if err := record.Validate(r); err != nil {
			problems = append(problems, fmt.Sprintf("record %d (%s): %v", i+1, r.Name, err))
			continue
		}
		recs = append(recs, r)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%d invalid records:\n  %s", len(problems), strings.Join(problems, "\n  "))
	}
	return recs, nil
}

func seedRecords(ctx context.Context, creator recorder.PageCreator, databaseID string, recs []record.PortfolioRecord) error {
	for i, r := range recs {
		page, err := creator.CreatePage(ctx, databaseID, record.PortfolioProperties(r))
		if err != nil {
			return fmt.Errorf("inserting record %d (%s): %w", i+1, r.Name, err)
		}
		printStep("%s %q → %s", r.Type, r.Name, page.ID)
	}
	printSuccess("Inserted %d records", len(recs))
	return nil
}

// --- resume ---

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Draft portfolio records from a PDF resume",
	Long: `Draft portfolio records from a PDF resume.

The draft is printed as YAML in the format seed reads. Review it first.

Examples:
  folio resume --file cv.pdf > records.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		text, err := resume.ExtractText(file)
		if err != nil {
			return err
		}
		recs := resume.Draft(resume.ParseSections(text), resume.FindContact(text))
		if len(recs) == 0 {
			printWarning("no sections recognized in %s", file)
		}
		return writeRecords(cmd.OutOrStdout(), recs)
	},
}

func init() {
	resumeCmd.Flags().String("file", "", "PDF resume")
}

func writeRecords(w io.Writer, recs []record.PortfolioRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(recordFile{Records: recs}); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return enc.Close()
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local record cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [type...]",
	Short: "Drop cached record lists so the next read goes to the store",
	Long: "Drop cached record lists. With no arguments every list is dropped; " +
		"otherwise only the named types (bio, skill, experience, ...) and the combined list.",
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := parseRecordTypes(args)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if err := content.Invalidate(cmd.Context(), store, types...); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		if len(types) == 0 {
			printSuccess("Cleared all cached lists")
		} else {
			printSuccess("Cleared cached %s lists", joinTypes(types))
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func parseRecordTypes(args []string) ([]record.RecordType, error) {
	var types []record.RecordType
	for _, a := range args {
		t, ok := record.ParseRecordType(a)
		if !ok {
			return nil, fmt.Errorf("unknown record type %q (want one of %s)", a, joinTypes(record.RecordTypes))
		}
		types = append(types, t)
	}
	return types, nil
}

func joinTypes(types []record.RecordType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			value := k.Value
			if k.Secret {
				value = colorize(colorYellow, value)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), value, k.EnvVar)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSettings file: %s\n", config.ConfigFile())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the settings file. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		stored, err := config.SetKey(key, args[1])
		if err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, stored)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
