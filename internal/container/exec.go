// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Executor runs external commands. Text extraction backends and the
// container runtimes go through it so tests can substitute canned output.
type Executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

// OSExecutor is the production Executor backed by os/exec.
type OSExecutor struct{}

func (OSExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (OSExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// RunPiped connects stdin and stdout to the command. Stderr is folded into
// the returned error so a failing tool explains itself.
func (OSExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Output runs name with args and returns its stdout.
func Output(ctx context.Context, e Executor, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	if err := e.RunPiped(ctx, name, args, nil, &out); err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}
	return out.Bytes(), nil
}

// Installed reports whether bin is on PATH.
func Installed(e Executor, bin string) bool {
	if bin == "" {
		return false
	}
	_, err := e.LookPath(bin)
	return err == nil
}
