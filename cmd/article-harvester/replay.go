// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-harvester/internal/pipeline"
)

var replayCmd = &cobra.Command{
	Use:   "replay [keywords...]",
	Short: "Process saved search snapshots instead of querying the sources",
	Long: `Replay reads <out>/searches/<keyword>.yaml, written by harvest --snapshot,
and processes those records exactly as harvest would. No search API is
queried; downloads and filters still run.`,
	RunE: runReplay,
}

func init() {
	addRunFlags(replayCmd.Flags())
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Keywords = append(cfg.Keywords, args...)
	// Snapshots are the input of a replay.
	cfg.Search.Snapshot = false
	if err := cfg.Validate(); err != nil {
		return err
	}
	return withPipeline(cmd, cfg, func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.RunSnapshots(ctx, cfg.Keywords)
		return err
	})
}
