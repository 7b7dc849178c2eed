package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/eval"
	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/sanitize"
	"github.com/fyrsmithlabs/specd/internal/search"
	"github.com/fyrsmithlabs/specd/internal/services"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

var evalOpts struct {
	configPath    string
	scenarios     []string
	scenarioDir   string
	reportDir     string
	transcriptDir string
	delay         time.Duration
	list          bool
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalOpts.configPath, "config", "", "path to config.yaml (default ~/.config/specd/config.yaml)")
	f.StringSliceVarP(&evalOpts.scenarios, "scenario", "s", nil, "scenario names to run (default all)")
	f.StringVar(&evalOpts.scenarioDir, "dir", "", "load scenarios from this directory instead of the built-in set")
	f.StringVar(&evalOpts.reportDir, "report-dir", "eval_results", "directory for the Markdown report")
	f.StringVar(&evalOpts.transcriptDir, "transcript-dir", "", "directory for JSON transcripts (default <report-dir>/transcripts)")
	f.DurationVar(&evalOpts.delay, "delay", 2*time.Second, "pause between turns to stay under provider rate limits")
	f.BoolVar(&evalOpts.list, "list", false, "list scenarios and exit")
	rootCmd.AddCommand(evalCmd)
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run founder scenarios against the configured model",
	Long: `Run scenarios in-process: each one drives a full conversation with either a
fixed message script or an LLM playing the founder, then checks the transcript
and final state. A Markdown report with the assertion checklist and the
scoring rubric is written to --report-dir.

Uses the same configuration as specd (SPECD_LLM_API_KEY etc.). No daemon is
needed.

Examples:
  spectl eval --list
  spectl eval -s vague_founder,arguer
  spectl eval --dir ./my-scenarios --delay 0`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func loadScenarios() ([]*eval.Scenario, error) {
	var all []*eval.Scenario
	var err error
	if evalOpts.scenarioDir != "" {
		all, err = eval.LoadScenarioDir(evalOpts.scenarioDir)
	} else {
		all, err = eval.BuiltinScenarios()
	}
	if err != nil {
		return nil, err
	}
	return eval.SelectScenarios(all, evalOpts.scenarios...)
}

func runEval(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	scenarios, err := loadScenarios()
	if err != nil {
		return err
	}
	if evalOpts.list {
		listScenarios(out, scenarios)
		return nil
	}

	cfg, err := config.Load(evalOpts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.LLM.APIKey.IsSet() {
		return llm.ErrMissingCredential
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return err
	}
	logCfg.Format = "console"
	logCfg.Output.Stdout = false
	logCfg.Output.Stderr = true
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gen, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return err
	}
	searcher, err := search.New(cfg.Search, logger.Named("search"))
	if err != nil {
		return err
	}
	settings, err := workflow.SettingsFromConfig(cfg.Workflow)
	if err != nil {
		return err
	}

	reportDir, err := sanitize.ValidatePath(evalOpts.reportDir, "")
	if err != nil {
		return fmt.Errorf("--report-dir: %w", err)
	}
	transcriptDir := filepath.Join(reportDir, "transcripts")
	if evalOpts.transcriptDir != "" {
		if transcriptDir, err = sanitize.ValidatePath(evalOpts.transcriptDir, ""); err != nil {
			return fmt.Errorf("--transcript-dir: %w", err)
		}
	}
	runner, err := eval.NewRunner(eval.RunnerConfig{
		Turner:        services.NewOrchestrator(gen, searcher, settings, logger),
		FounderLLM:    gen,
		Settings:      settings,
		TurnDelay:     evalOpts.delay,
		TranscriptDir: transcriptDir,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	logger.Info(ctx, "running eval", zap.Int("scenarios", len(scenarios)))
	results, err := runner.RunScenarios(ctx, scenarios)
	for _, r := range results {
		fmt.Fprintln(out, eval.Checklist(r))
	}
	if err != nil {
		return err
	}

	meta := eval.RunMetadata{Timestamp: started, Models: modelRouting(cfg.LLM)}
	report, err := eval.WriteReport(reportDir, results, meta)
	if err != nil {
		return err
	}

	passed, total := 0, 0
	for _, r := range results {
		passed += r.Passed()
		total += len(r.Assertions)
	}
	fmt.Fprintf(out, "%d/%d assertions passed across %d scenario(s)\n", passed, total, len(results))
	fmt.Fprintf(out, "Report: %s\n", report)
	return nil
}

func listScenarios(out io.Writer, scenarios []*eval.Scenario) {
	for _, s := range scenarios {
		mode := string(s.MessagePolicy)
		if len(s.Messages) > 0 {
			mode = fmt.Sprintf("scripted, %d messages", len(s.Messages))
		}
		fmt.Fprintf(out, "%-16s %-24s %s\n", s.Name, mode, s.Description)
	}
}

func modelRouting(c config.LLMConfig) map[string]string {
	r := llm.OptionsFromConfig(c).Routing
	return map[string]string{
		string(llm.TaskConversation):   r.Model(llm.TaskConversation),
		string(llm.TaskDocument):       r.Model(llm.TaskDocument),
		string(llm.TaskExtraction):     r.Model(llm.TaskExtraction),
		string(llm.TaskClassification): r.Model(llm.TaskClassification),
	}
}
