// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/article-harvester/internal/secrets"
	"github.com/pdiddy/article-harvester/pkg/types"
)

// flagKeys maps command-line flags to their configuration keys, so that every
// flag can also be set from the config file or ARTICLE_HARVESTER_* variables.
var flagKeys = map[string]string{
	"keyword":                "keywords",
	"out":                    "output_dir",
	"verbose":                "verbose",
	"inventory-backend":      "inventory",
	"metrics-file":           "metrics_file",
	"source":                 "search.sources",
	"max-per-source":         "search.max_per_source",
	"snapshot":               "search.snapshot",
	"timeout":                "acquisition.timeout",
	"request-delay":          "acquisition.request_delay",
	"oa-only":                "acquisition.oa_only",
	"openalex-fallback":      "acquisition.openalex_fallback",
	"mirror-domain":          "acquisition.mirror.domain",
	"abstract-filter":        "filter.abstract_enabled",
	"abstract-pattern":       "filter.abstract_patterns",
	"abstract-policy":        "filter.abstract_policy",
	"abstract-patterns-file": "filter.abstract_patterns_file",
	"fulltext-filter":        "filter.fulltext",
	"fulltext-pattern":       "filter.fulltext_patterns",
	"property-name":          "filter.property_names",
	"property-unit":          "filter.property_units",
	"pdf-backend":            "extraction.pdf_backend",
	"table-command":          "extraction.table_command",
}

// addOutputFlags registers the flags every command that touches the output
// directory shares. Defaults come from DefaultHarvestConfig so that an unset
// flag never overrides a config file value with something different.
func addOutputFlags(fs *pflag.FlagSet) {
	d := types.DefaultHarvestConfig()
	fs.StringP("out", "o", d.OutputDir, "base output directory")
	fs.BoolP("verbose", "v", d.Verbose, "print a per-stage report for every article")
	fs.String("inventory-backend", string(d.Inventory), "inventory format: csv or sqlite")
	fs.String("metrics-file", d.MetricsFile, "write Prometheus text metrics to this file at exit")
	fs.Duration("timeout", d.Acquisition.Timeout, "HTTP request timeout")
	fs.Duration("request-delay", d.Acquisition.RequestDelay, "minimum spacing between outbound requests")
	fs.Bool("oa-only", d.Acquisition.OAOnly, "use only open-access download strategies")
	fs.Bool("openalex-fallback", d.Acquisition.OpenAlexFallback, "look up an open-access PDF on OpenAlex before the mirror")
	fs.String("mirror-domain", d.Acquisition.Mirror.Domain, "mirror top-level domain")
}

// addRunFlags registers the search, filter, and extraction flags of the
// harvest and replay commands.
func addRunFlags(fs *pflag.FlagSet) {
	d := types.DefaultHarvestConfig()
	addOutputFlags(fs)
	fs.StringArrayP("keyword", "k", nil, "search keyword (repeatable)")
	fs.StringSlice("source", nil, "search source: openalex, europepmc, crossref, arxiv, sciencedirect (repeatable, default all)")
	fs.Int("max-per-source", d.Search.MaxPerSource, "maximum records per source and keyword (0 means unlimited)")
	fs.Bool("snapshot", d.Search.Snapshot, "save merged search results to <out>/searches")
	fs.Bool("abstract-filter", d.Filter.AbstractEnabled, "skip downloads whose abstract does not match")
	fs.StringArray("abstract-pattern", nil, "abstract regex, case-insensitive (repeatable)")
	fs.String("abstract-policy", string(d.Filter.AbstractPolicy), "how abstract patterns combine: all or any")
	fs.String("abstract-patterns-file", d.Filter.AbstractPatternsFile, "YAML file of additional abstract patterns")
	fs.String("fulltext-filter", string(d.Filter.FullText), "full-text requirement: any, names, units, or names_units (empty disables)")
	fs.StringArray("fulltext-pattern", nil, "full-text regex, case-insensitive (repeatable)")
	fs.StringArray("property-name", nil, "property name that counts as full-text evidence (repeatable)")
	fs.StringArray("property-unit", nil, "property unit that counts as full-text evidence (repeatable)")
	fs.String("pdf-backend", string(d.Extraction.PDFBackend), "PDF text extractor: pdftotext or markitdown")
	fs.String("table-command", d.Extraction.TableCommand, "table extraction binary")
}

// bindFlags binds the flags of the running command into viper. Binding
// happens per invocation because commands share flag names.
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

// loadConfig layers defaults, config file, environment, and flags into a
// HarvestConfig and fills API keys from the loaded secrets.
func loadConfig(cmd *cobra.Command) (types.HarvestConfig, error) {
	cfg := types.DefaultHarvestConfig()
	if err := bindFlags(cmd); err != nil {
		return cfg, err
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}
