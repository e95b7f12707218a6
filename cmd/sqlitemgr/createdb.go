package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sqlitemgr/internal/config"
	"sqlitemgr/internal/dataset"
)

func newCreateDBCmd(a *app) *cobra.Command {
	var cfg config.CreateDB
	cmd := &cobra.Command{
		Use:   "create-db",
		Short: "Create or update a SQLite database from a schema and load CSV data",
		Long: "Applies --schema to --db (creating the file when absent) and appends the rows of --data to --table. " +
			"The schema must define the table and every CSV column must exist in it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Common = a.common
			if printIssues(a.stderr, config.ValidateCreateDB(cfg)) {
				return withCode(exitSetup, errors.New("invalid configuration"))
			}

			logger, err := a.newLogger("create_sqlite_db_")
			if err != nil {
				return withCode(exitSetup, err)
			}
			defer logger.Close()
			flush := setupMetrics(cfg.Common, logger.Logger)
			defer flush()

			comma, _ := cfg.Comma()
			rep, err := dataset.CreateDB(cmd.Context(), dataset.Options{
				DataPath:   cfg.DataFile,
				SchemaPath: cfg.SchemaFile,
				DBPath:     cfg.DBFile,
				Table:      cfg.Table,
				Comma:      comma,
				BatchSize:  cfg.BatchSize,
				Logger:     logger.Logger,
				Job:        cfg.Job,
			})
			if err != nil {
				return withCode(exitFailures, err)
			}
			fmt.Fprintf(a.stdout, "table=%s created=%t inserted=%d batches=%d\n",
				rep.Table, rep.Created, rep.Inserted, rep.Batches)
			return nil
		},
	}
	config.BindCreateDB(cmd.Flags(), a.getenv, &cfg)
	return cmd
}
