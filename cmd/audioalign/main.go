package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audioalign/pkg/aligner"
	"github.com/xaionaro-go/audioalign/pkg/config"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
	"github.com/xaionaro-go/audioalign/pkg/report"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to the TOML configuration; see --print-sample-config")
	printSampleConfig := pflag.Bool("print-sample-config", false, "print a commented configuration and exit")
	dir := pflag.String("dir", "", "session directory, used instead of --config")
	reference := pflag.String("reference", "", "reference recording of --dir")
	trackPrefix := pflag.String("track-prefix", "", "tracks of --dir are '<prefix>_<track>.wav'")
	annotationSource := pflag.String("annotation-source", "", "annotation document of --dir to shift")
	annotationDestination := pflag.String("annotation-destination", "", "where to write the shifted annotation document")
	method := pflag.String("method", "", "offset search method: bruteforce or fft")
	workers := pflag.Int("workers", 0, "amount of tracks processed at the same time")
	crossCheck := pflag.Bool("cross-check", false, "log a GCC-PHAT estimate next to every track offset")
	overwrite := pflag.Bool("overwrite", false, "allow replacing an existing annotation destination")
	pflag.Parse()

	if *printSampleConfig {
		fmt.Print(config.SampleConfig())
		return
	}

	cfg, err := loadConfig(*configPath, config.Session{
		Dir:                   *dir,
		Reference:             *reference,
		TrackPrefix:           *trackPrefix,
		AnnotationSource:      *annotationSource,
		AnnotationDestination: *annotationDestination,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	flags := pflag.CommandLine
	if flags.Changed("method") {
		cfg.Analysis.Method = *method
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = *workers
	}
	if flags.Changed("cross-check") {
		cfg.Analysis.CrossCheck = *crossCheck
	}
	if flags.Changed("overwrite") {
		cfg.Annotation.Overwrite = *overwrite
	}
	if !flags.Changed("log-level") {
		level, err := cfg.LogLevel()
		assertNoError(err)
		loggerLevel = level
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}

	exitCode := run(ctx, cfg)
	belt.Flush(ctx)
	os.Exit(exitCode)
}

func loadConfig(path string, session config.Session) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if session.Dir == "" {
		return nil, fmt.Errorf("either --config or --dir is required")
	}
	cfg := config.Default()
	if err := session.Normalize(""); err != nil {
		return nil, err
	}
	cfg.Sessions = []config.Session{session}
	return &cfg, nil
}

func run(ctx context.Context, cfg *config.Config) int {
	a, err := aligner.New(cfg)
	if err != nil {
		logger.Errorf(ctx, "%v", err)
		return 2
	}
	policy, err := cfg.TieBreakPolicy()
	assertNoError(err)

	results, err := a.Run(ctx)
	if len(results) > 0 {
		fmt.Println(report.Sessions(results, policy, cfg.Rate(), report.Style(os.Stdout)))
	}
	if err == nil {
		return 0
	}

	var disagreement *consensus.DisagreementError
	if errors.As(err, &disagreement) {
		fmt.Fprintln(os.Stderr, disagreement.Render(report.Style(os.Stderr), float64(cfg.Rate())))
	}
	logger.Errorf(ctx, "%v", err)
	return 1
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
