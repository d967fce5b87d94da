// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-harvester/internal/pipeline"
)

var retryCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Retry the download cascade for identifiers in the failed log",
	Long: `Retry-failed reads <out>/doi_not_downl.txt, drops identifiers that have since
been downloaded, and runs the download cascade again for the rest. The
inventory is not modified.`,
	Args: cobra.NoArgs,
	RunE: runRetry,
}

func init() {
	addOutputFlags(retryCmd.Flags())
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSettings(); err != nil {
		return err
	}
	return withPipeline(cmd, cfg, func(ctx context.Context, p *pipeline.Pipeline) error {
		_, err := p.RetryFailed(ctx)
		return err
	})
}
