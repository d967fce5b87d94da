// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/internal/pipeline"
	"github.com/pdiddy/article-harvester/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [keywords...]",
	Short: "Search, download, filter, and record articles for keywords",
	Long: `Harvest queries every configured source for each keyword, merges the
results by normalized identifier, and processes each new article: the abstract
filter, the download cascade (direct link, optional OpenAlex, mirror), the
full-text filter, and one inventory row. Articles already in the inventory are
skipped, so an interrupted harvest resumes where it stopped.

Keywords come from --keyword or positional arguments.`,
	RunE: runHarvest,
}

func init() {
	addRunFlags(harvestCmd.Flags())
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Keywords = append(cfg.Keywords, args...)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return withPipeline(cmd, cfg, func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.Run(ctx, cfg.Keywords)
		return err
	})
}

// withPipeline builds the pipeline for cfg, runs fn, and writes the metrics
// textfile whether or not fn succeeded.
func withPipeline(cmd *cobra.Command, cfg types.HarvestConfig, fn func(context.Context, *pipeline.Pipeline) error) error {
	ctx := logger.WithContext(cmd.Context())
	metrics := observability.NewMetrics("article_harvester")

	p, err := pipeline.New(ctx, cfg, cmd.OutOrStdout(), logger, metrics)
	if err != nil {
		return err
	}
	runErr := fn(ctx, p)
	if err := p.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing inventory: %w", err)
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Msg("metrics not written")
	}

	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted. Run the same command again to resume.")
	}
	return runErr
}
