//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// keywordArgs turns the comma-separated KEYWORDS variable into --keyword flags.
func keywordArgs() ([]string, error) {
	raw := os.Getenv("KEYWORDS")
	var args []string
	for _, kw := range strings.Split(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			args = append(args, "--keyword", kw)
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("set KEYWORDS to a comma-separated keyword list")
	}
	return args, nil
}

// Harvest builds the CLI and harvests the keywords in KEYWORDS into data/.
func Harvest() error {
	mg.Deps(Build)
	args, err := keywordArgs()
	if err != nil {
		return err
	}
	return sh.RunV(binPath, append([]string{"harvest", "--snapshot"}, args...)...)
}

// Replay processes the saved snapshots of the keywords in KEYWORDS.
func Replay() error {
	mg.Deps(Build)
	args, err := keywordArgs()
	if err != nil {
		return err
	}
	return sh.RunV(binPath, append([]string{"replay"}, args...)...)
}

// RetryFailed re-runs the download cascade for data/doi_not_downl.txt.
func RetryFailed() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "retry-failed")
}
