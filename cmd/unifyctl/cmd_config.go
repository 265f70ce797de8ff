package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"unify/internal/entity/merge"
	matchconfig "unify/internal/match/config"
	"unify/internal/match/policy"
	policypg "unify/internal/match/policy/store/postgres"
	"unify/internal/platform/logger"
	id "unify/pkg/domain"
	auditpg "unify/pkg/platform/audit/store/postgres"
)

// seedFile is the YAML shape accepted by `config seed`.
type seedFile struct {
	Configs []seedConfig `yaml:"configs"`
}

type seedConfig struct {
	EntityType         string             `yaml:"entity_type"`
	AutoMergeThreshold float64            `yaml:"auto_merge_threshold"`
	ReviewThreshold    float64            `yaml:"review_threshold"`
	EnableAutoMerge    bool               `yaml:"enable_auto_merge"`
	Weights            map[string]float64 `yaml:"weights"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage match configuration",
	}
	cmd.AddCommand(newConfigSeedCmd())
	return cmd
}

func newConfigSeedCmd() *cobra.Command {
	var (
		file  string
		actor string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load match thresholds and weights from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var seeds seedFile
			if err := yaml.Unmarshal(raw, &seeds); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if len(seeds.Configs) == 0 {
				return fmt.Errorf("%s contains no configs", file)
			}

			db, _, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := matchconfig.NewService(
				policypg.New(db),
				auditpg.New(db),
				merge.NewSQLTx(db),
				logger.New(),
			)

			for _, seed := range seeds.Configs {
				t, err := id.ParseEntityType(seed.EntityType)
				if err != nil {
					return err
				}
				snap, err := svc.Update(ctx, policy.Snapshot{
					Type:               t,
					AutoMergeThreshold: seed.AutoMergeThreshold,
					ReviewThreshold:    seed.ReviewThreshold,
					EnableAutoMerge:    seed.EnableAutoMerge,
					Weights:            seed.Weights,
				}, actor)
				if err != nil {
					return fmt.Errorf("seed %s: %w", seed.EntityType, err)
				}
				fmt.Printf("%s: auto_merge=%.2f review=%.2f enabled=%t\n",
					snap.Type, snap.AutoMergeThreshold, snap.ReviewThreshold, snap.EnableAutoMerge)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "match_config.yaml", "path to the seed file")
	cmd.Flags().StringVar(&actor, "actor", "unifyctl", "actor recorded on the audit trail")
	return cmd
}
