package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/loader"
	"github.com/xaionaro-go/audioalign/pkg/report"
)

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	listPath := pflag.String("list", "", "file with one recording path per line, in addition to the arguments")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	paths := pflag.Args()
	if *listPath != "" {
		listed, err := readList(*listPath)
		assertNoError(err)
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [--list FILE] RECORDING...\n", os.Args[0])
		os.Exit(2)
	}

	// the rate is only checked when decoding, probing takes any
	probe := loader.New(0)
	files := make([]report.FileDuration, 0, len(paths))
	for _, path := range paths {
		info, err := probe.Probe(ctx, path)
		if err == nil && info.Frames < 0 {
			// no length in the header, count the decoded samples
			var w *audio.Waveform
			w, err = loader.New(info.SampleRate).Load(ctx, path, path)
			if err == nil {
				info.Frames = int64(len(w.Samples))
			}
		}
		if err != nil {
			logger.Warnf(ctx, "unable to measure '%s': %v", path, err)
		}
		files = append(files, report.FileDuration{Path: path, Info: info, Err: err})
	}
	fmt.Println(report.Durations(files, report.Style(os.Stdout)))
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	return paths, nil
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
