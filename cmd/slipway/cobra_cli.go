// Slipway — rig execution engine
// License: MIT
//
// Copyright (c) 2026 Slipway contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipwayhq/slipway/pkg/config"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/sandbox"
	"github.com/slipwayhq/slipway/pkg/sandbox/jsrunner"
	"github.com/slipwayhq/slipway/pkg/sandbox/wasmrunner"
	"github.com/slipwayhq/slipway/pkg/session"
)

var (
	flagDebug      bool
	flagConfigPath string
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slipway",
		Short:         "Slipway — a rig execution engine",
		Long:          `Slipway runs a DAG of sandboxed WASM/JS components wired together by a JSON rig document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [rig.json]",
		Short: "parse and resolve a rig without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			defer l.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			prep, warnings, err := prepareRig(cmd.Context(), l, data)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
			}
			fmt.Printf("ok: %d component(s) resolved (base dir %s)\n", len(prep.components), cfg.BaseDir)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run [rig.json]",
		Short: "execute a rig to completion and print its outputs as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			defer l.Close()

			if concurrency > 0 {
				cfg.SessionConcurrency = concurrency
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			return runRig(cmd.Context(), cfg, l, args[0], data)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override session concurrency (default: config/1)")
	return cmd
}

func setup() (*config.Config, *loader.Loader, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, nil, err
	}
	l := loader.New(cfg.LoaderConfig(), newLogger())
	return cfg, l, nil
}

func runRig(ctx context.Context, cfg *config.Config, l *loader.Loader, name string, data []byte) error {
	prep, warnings, err := prepareRig(ctx, l, data)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}

	logger := newLogger()

	wasm := wasmrunner.New(ctx)
	defer wasm.Close(ctx)
	js := jsrunner.New(cfg.JSRunnerConfig())
	defer js.Close()

	runners := []sandbox.Runner{wasm, js}

	sess, err := session.New(name, prep.rig, prep.components, prep.files, runners, l, cfg.SessionConfig())
	if err != nil {
		return err
	}

	snap, err := sess.Initialize()
	if err != nil {
		return err
	}

	snap, err = sess.RunAll(ctx, snap)
	if err != nil {
		return err
	}

	out := make(map[string]json.RawMessage, len(snap.States))
	for h, cs := range snap.States {
		if v, ok := cs.EffectiveOutput(); ok {
			out[h.String()] = v
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	logger.Debug("run complete", "rig", name, "handles", len(snap.States))
	return enc.Encode(out)
}
