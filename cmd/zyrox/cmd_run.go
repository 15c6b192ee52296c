// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/metadata"
	"github.com/zyroxobf/zyrox/internal/obfuscate/cfg"
	"github.com/zyroxobf/zyrox/internal/obfuscate/mbasub"
	"github.com/zyroxobf/zyrox/internal/obfuscate/strenc"
	"github.com/zyroxobf/zyrox/internal/passreg"
	"github.com/zyroxobf/zyrox/internal/prngsvc"
	"github.com/zyroxobf/zyrox/internal/scheduler"
	"github.com/zyroxobf/zyrox/internal/script"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zyrox",
		Short: "Zyrox rewrites a serialized IR module according to a ZyroxConfig.js script",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		inPath   string
		outPath  string
		cfgPath  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a module, obfuscate it, write it back out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObfuscate(inPath, outPath, cfgPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "path to the input serialized IR module")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the rewritten IR module")
	cmd.Flags().StringVar(&cfgPath, "config", "ZyroxConfig.js", "path to the configuration script")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "zap log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("zyrox: parsing --log-level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zl)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// runObfuscate is the full driver sequence: parse, read the module,
// build collaborators, run String-Encryption once, let the script
// schedule per-function passes and replay them, write the module back.
func runObfuscate(inPath, outPath, cfgPath, logLevel string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	log := logger.With(zap.String("run_id", runID))
	log.Info("zyrox run starting", zap.String("in", inPath), zap.String("out", outPath), zap.String("config", cfgPath))

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("zyrox: reading %s: %w", inPath, err)
	}
	module, err := ir.ModuleFromJSON(data)
	if err != nil {
		return fmt.Errorf("zyrox: decoding %s: %w", inPath, err)
	}

	src, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("zyrox: reading config %s: %w", cfgPath, err)
	}

	registry := passreg.NewRegistry()
	registry.Register("MBASub", "MBASub", mbasub.New(prngsvc.Default))
	registry.Register("BasicBlockSplitter", "BasicBlockSplitter", cfg.BasicBlockSplitter{})
	registry.Register("IndirectBranch", "IndirectBranch", cfg.IndirectBranch{})
	registry.Register("SimpleIndirectBranch", "SimpleIndirectBranch", cfg.SimpleIndirectBranch{})

	store := metadata.NewStore()
	bridge := script.NewBridge(registry, store, log)
	if err := bridge.LoadSource(cfgPath, string(src)); err != nil {
		return fmt.Errorf("zyrox: loading %s: %w", cfgPath, err)
	}
	if !bridge.HasConfigClass() {
		return fmt.Errorf("zyrox: %s never called z.RegisterClass", cfgPath)
	}
	if err := bridge.Init(); err != nil {
		return fmt.Errorf("zyrox: running Init: %w", err)
	}

	strencPass := strenc.New(bridge, prngsvc.Default, store, log)
	if err := strencPass.Run(module); err != nil {
		return fmt.Errorf("zyrox: String-Encryption pass: %w", err)
	}

	sched := scheduler.New(bridge, registry, store, log)
	if err := sched.Run(module); err != nil {
		return fmt.Errorf("zyrox: pass scheduling: %w", err)
	}

	for _, s := range bridge.MetaDataStrings() {
		log.Info("script metadata", zap.String("value", s))
	}

	out, err := ir.ModuleToJSON(module)
	if err != nil {
		return fmt.Errorf("zyrox: encoding output module: %w", err)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("zyrox: writing %s: %w", outPath, err)
	}

	log.Info("zyrox run finished")
	return nil
}
