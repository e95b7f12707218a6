package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sqlitemgr/internal/config"
	"sqlitemgr/internal/query"
	"sqlitemgr/internal/runner"
)

func newRunCmd(a *app) *cobra.Command {
	var cfg config.Run
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute query files and write their results as CSV",
		Long: "Walks --query-dir in lexical order and executes every .sql file against --db. " +
			"Each tabular result is written to --output-dir at the same relative path with a .csv extension. " +
			"Queries with an existing result are skipped unless named with --rerun or --rerun-all is set. " +
			"A failing query is logged and the run continues; the exit code is 1 when any query failed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Common = a.common
			return a.run(cmd, cfg)
		},
	}
	config.BindRun(cmd.Flags(), a.getenv, &cfg)
	return cmd
}

func (a *app) run(cmd *cobra.Command, cfg config.Run) error {
	if printIssues(a.stderr, config.ValidateRun(cfg)) {
		return withCode(exitSetup, errors.New("invalid configuration"))
	}

	logger, err := a.newLogger("")
	if err != nil {
		return withCode(exitSetup, err)
	}
	defer logger.Close()
	flush := setupMetrics(cfg.Common, logger.Logger)
	defer flush()

	if logger.FilePath != "" {
		logger.Debug("Logging to file", "path", logger.FilePath)
	}

	orch := runner.New(runner.Options{Logger: logger.Logger, Job: cfg.Job})
	sum, err := orch.Run(cmd.Context(), runner.RunRequest{
		QueryDir:  cfg.QueryDir,
		DBFile:    cfg.DBFile,
		OutputDir: cfg.OutputDir,
		Policy:    query.PolicyFrom(cfg.RerunAll, cfg.Rerun),
	})
	if err != nil && runner.IsSetupError(err) {
		return withCode(exitSetup, err)
	}

	fmt.Fprintf(a.stdout, "executed=%d skipped=%d failed=%d elapsed=%s\n",
		sum.Executed, sum.Skipped, sum.Failed, sum.Elapsed.Round(1e6))
	for _, f := range sum.Failures() {
		fmt.Fprintf(a.stderr, "FAILED %s: %v\n", f.Query.RelPath, f.Err)
	}

	if err != nil {
		return withCode(exitFailures, err)
	}
	if !sum.OK() {
		return withCode(exitFailures, fmt.Errorf("%d of %d queries failed", sum.Failed, sum.Total()))
	}
	return nil
}
