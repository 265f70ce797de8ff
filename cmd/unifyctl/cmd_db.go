package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unify/internal/platform/postgres"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Apply the service schema (idempotent)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.ApplySchema(ctx, db); err != nil {
				return err
			}
			fmt.Println("schema applied")
			return nil
		},
	})
	return cmd
}
