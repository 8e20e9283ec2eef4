package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"aidigest/pkg/config"
	"aidigest/pkg/pipeline"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file"`
	Output  string `short:"o" long:"output" env:"OUTPUT" description:"digest output path, overrides config"`
	DryRun  bool   `long:"dry-run" description:"run without recording delivered articles"`
	Verbose bool   `short:"v" long:"verbose" description:"verbose mode"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if opts.Output != "" {
		cfg.Digest.OutputPath = opts.Output
	}

	setupLog(opts.Debug || opts.Verbose, cfg.Summary.APIKey)

	lgr.Printf("[INFO] starting aidigest version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.DryRun); err != nil {
		lgr.Printf("[ERROR] run failed: %v", err)
		os.Exit(1)
	}

	lgr.Printf("[INFO] done")
}

func run(ctx context.Context, cfg *config.Config, dryRun bool) error {
	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer p.Close()

	if dryRun {
		p.SetDryRun(true)
		lgr.Printf("[INFO] dry run, delivered articles will not be recorded")
	}

	rep, err := p.Run(ctx)
	if err != nil {
		return err
	}

	for src, srcErr := range rep.SourceErrors {
		lgr.Printf("[WARN] source %s failed: %v", src, srcErr)
	}
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	for _, sec := range secs {
		if sec != "" {
			logOpts = append(logOpts, lgr.Secret(sec))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
