package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlitemgr/internal/config"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a command's configuration without running it",
	}

	var runCfg config.Run
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Validate run flags and inputs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runCfg.Common = a.common
			issues := config.ValidateRun(runCfg)
			issues = append(issues, pathIssue("query-dir", runCfg.QueryDir, true)...)
			issues = append(issues, pathIssue("db", runCfg.DBFile, false)...)
			return a.report(issues)
		},
	}
	config.BindRun(runCmd.Flags(), a.getenv, &runCfg)

	var loadCfg config.CreateDB
	loadCmd := &cobra.Command{
		Use:   "create-db",
		Short: "Validate create-db flags and inputs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			loadCfg.Common = a.common
			issues := config.ValidateCreateDB(loadCfg)
			issues = append(issues, pathIssue("data", loadCfg.DataFile, false)...)
			issues = append(issues, pathIssue("schema", loadCfg.SchemaFile, false)...)
			return a.report(issues)
		},
	}
	config.BindCreateDB(loadCmd.Flags(), a.getenv, &loadCfg)

	cmd.AddCommand(runCmd, loadCmd)
	return cmd
}

func (a *app) report(issues []config.Issue) error {
	if printIssues(a.stderr, issues) {
		return withCode(exitSetup, errors.New("configuration is invalid"))
	}
	fmt.Fprintln(a.stdout, "configuration is valid")
	return nil
}

// pathIssue checks that p exists and is a directory (dir) or a regular file.
func pathIssue(flag, p string, dir bool) []config.Issue {
	if p == "" {
		return nil
	}
	fi, err := os.Stat(p)
	switch {
	case err != nil:
		return []config.Issue{{Severity: config.SeverityError, Path: flag, Message: err.Error()}}
	case dir && !fi.IsDir():
		return []config.Issue{{Severity: config.SeverityError, Path: flag, Message: p + " is not a directory"}}
	case !dir && !fi.Mode().IsRegular():
		return []config.Issue{{Severity: config.SeverityError, Path: flag, Message: p + " is not a regular file"}}
	}
	return nil
}
