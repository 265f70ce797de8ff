package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unify/internal/entity/merge"
	"unify/internal/ingest"
	ingestmetrics "unify/internal/ingest/metrics"
	ingestpg "unify/internal/ingest/store/postgres"
	"unify/internal/platform/logger"
	id "unify/pkg/domain"
	auditpg "unify/pkg/platform/audit/store/postgres"
)

func newRepairCmd() *cobra.Command {
	var (
		all    bool
		dryRun bool
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "repair [run-id]",
		Short: "Resolve stuck ingest runs from staged-row evidence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !all && len(args) == 0 {
				return fmt.Errorf("pass a run id or --all")
			}
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a run id")
			}

			db, cfg, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			repairer := ingest.NewRepairer(
				ingestpg.NewRunStore(db),
				ingestpg.NewRecordStore(db),
				auditpg.New(db),
				merge.NewSQLTx(db),
				logger.New(),
				ingestmetrics.New(),
				cfg.StaleRunWindow,
			)

			if all {
				actions, err := repairer.RepairAll(ctx, actor, dryRun)
				if err != nil {
					return err
				}
				if len(actions) == 0 {
					fmt.Println("no stuck runs")
					return nil
				}
				for _, a := range actions {
					printAction(a)
				}
				return nil
			}

			runID, err := id.ParseRunID(args[0])
			if err != nil {
				return err
			}
			action, err := repairer.Repair(ctx, runID, actor, dryRun)
			if err != nil {
				return err
			}
			printAction(action)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "repair every stuck run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the outcome without writing")
	cmd.Flags().StringVar(&actor, "actor", "unifyctl", "actor recorded on the audit trail")
	return cmd
}

func printAction(a *ingest.RepairAction) {
	verb := "repaired"
	if a.DryRun {
		verb = "would repair"
	}
	fmt.Printf("%s %s (%s): %s -> %s, %s [total=%d suspect=%d]\n",
		verb, a.RunID, a.Source, a.OldState, a.NewState, a.Reason,
		a.Counts.Total, a.Counts.Suspect,
	)
}
