// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files. The
// filename is the key name and the trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// Key files the harvester reads.
const (
	KeyElsevier      = "elsevier-api-key"
	KeyOpenAlexEmail = "openalex-email"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory yields an empty map. Unreadable files are
// logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills the Elsevier key and contact email of cfg from secrets.
// Values already set in cfg win.
func Apply(cfg *types.HarvestConfig, secrets map[string]string) {
	if key := secrets[KeyElsevier]; key != "" {
		if cfg.Search.ElsevierAPIKey == "" {
			cfg.Search.ElsevierAPIKey = key
		}
		if cfg.Acquisition.ElsevierAPIKey == "" {
			cfg.Acquisition.ElsevierAPIKey = key
		}
	}
	if email := secrets[KeyOpenAlexEmail]; email != "" && cfg.Search.ContactEmail == "" {
		cfg.Search.ContactEmail = email
	}
}
