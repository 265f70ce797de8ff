package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unify/internal/engine"
	enginemetrics "unify/internal/engine/metrics"
	"unify/internal/entity"
	entitymetrics "unify/internal/entity/metrics"
	"unify/internal/entity/merge"
	entitypg "unify/internal/entity/store/postgres"
	identifierpg "unify/internal/identifier/store/postgres"
	ingestpg "unify/internal/ingest/store/postgres"
	"unify/internal/match/blocking"
	matchmetrics "unify/internal/match/metrics"
	"unify/internal/match/policy"
	policypg "unify/internal/match/policy/store/postgres"
	matchpg "unify/internal/match/store/postgres"
	"unify/internal/phonetic"
	"unify/internal/platform/logger"
	"unify/internal/platform/pglock"
	redisclient "unify/internal/platform/redis"
	id "unify/pkg/domain"
	auditpg "unify/pkg/platform/audit/store/postgres"
)

func newRunCmd() *cobra.Command {
	var typeFlags []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a match pass: generate candidates and execute the auto-merge tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			types := make([]id.EntityType, 0, len(typeFlags))
			for _, raw := range typeFlags {
				t, err := id.ParseEntityType(raw)
				if err != nil {
					return err
				}
				types = append(types, t)
			}

			db, cfg, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			cache, err := redisclient.New(cfg.RedisURL)
			if err != nil {
				return err
			}
			if cache != nil {
				defer cache.Close()
			}

			locker, err := pglock.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer locker.Close()

			log := logger.New()

			entityStore := entitypg.New(db)
			identifierStore := identifierpg.New(db)
			candidateStore := matchpg.NewCandidateStore(db)
			blockStore := matchpg.NewBlockStore(db)
			policyStore := policypg.New(db)
			recordStore := ingestpg.NewRecordStore(db)
			auditStore := auditpg.New(db)
			sqlTx := merge.NewSQLTx(db)

			resolver := entity.NewResolver(entityStore, cache, log)
			executor := merge.NewExecutor(
				entityStore, resolver, blockStore, auditStore,
				locker, sqlTx, log, entitymetrics.New(),
				identifierStore, recordStore,
			)

			enc := phonetic.NewDisabled()
			if cfg.PhoneticsEnabled {
				enc = phonetic.New(phonetic.Metaphone{})
			}
			generator := blocking.NewGenerator(
				entityStore, identifierStore, resolver, enc,
				candidateStore, policy.NewGuard(blockStore), policyStore,
				log, matchmetrics.New(), cfg.MatchBatchSize,
			)

			eng := engine.New(
				generator, candidateStore, entityStore, executor,
				auditStore, log, enginemetrics.New(), cfg.MatchBatchSize,
			)

			results, err := eng.Run(ctx, types...)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Printf("%s: entities=%d pairs=%d scored=%d auto_merged=%d review=%d ignored=%d skipped=%d\n",
					res.Type,
					res.Generation.Entities,
					res.Generation.PairsDiscovered,
					res.Generation.PairsScored,
					res.AutoMerged,
					res.Generation.NeedsReview,
					res.Generation.Ignored,
					res.Skipped,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&typeFlags, "type", nil, "entity types to process (default: all)")
	return cmd
}
