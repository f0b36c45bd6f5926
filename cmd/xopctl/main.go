// Command xopctl converts XML documents to and from XOP packages.
//
//	xopctl encode [-config file] [-in file] [-out file]
//	xopctl decode [-config file] [-in file] [-out file]
//
// Input defaults to stdin and output to stdout. Without -config the built-in
// defaults are used: UUID Content-IDs, the producer-hint policy and MIME
// packaging. When the configuration names a MongoDB URI, parts are kept in
// GridFS and only the XOP infoset is written.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirosfoundation/go-xop/internal/config"
	"github.com/sirosfoundation/go-xop/internal/partstore"
	"github.com/sirosfoundation/go-xop/internal/partstore/mongodb"
	"github.com/sirosfoundation/go-xop/internal/transcode"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runWithArgs(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: xopctl <encode|decode> [-config file] [-in file] [-out file]\n")
}

func runWithArgs(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	command := args[0]
	if command != "encode" && command != "decode" {
		fmt.Fprintf(stderr, "error: unknown command %q\n", command)
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("xopctl "+command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file")
	inPath := fs.String("in", "", "input file (default stdin)")
	outPath := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	logger := cfg.Logging.NewLogger(stderr)

	if err := run(ctx, command, cfg, logger, *inPath, *outPath, stdin, stdout); err != nil {
		logger.Error("xopctl failed", slog.String("command", command), slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func run(ctx context.Context, command string, cfg *config.Config, logger *slog.Logger, inPath, outPath string, stdin io.Reader, stdout io.Writer) (err error) {
	in := stdin
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if outPath != "" {
		f, createErr := os.Create(outPath)
		if createErr != nil {
			return fmt.Errorf("creating output: %w", createErr)
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		out = f
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close(context.Background())
	}

	tc := transcode.New(cfg, store, logger)
	switch command {
	case "encode":
		res, err := tc.Encode(ctx, in, out)
		if err != nil {
			return err
		}
		for _, id := range res.ContentIDs {
			logger.Debug("part", slog.String("content_id", id))
		}
		return nil
	default:
		return tc.Decode(ctx, in, out)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (partstore.Store, error) {
	mc := cfg.Storage.MongoDB
	if !mc.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, mc.Timeout)
	defer cancel()
	store, err := mongodb.NewStore(ctx, &mongodb.Config{
		URI:            mc.URI,
		Database:       mc.Database,
		GridFSBucket:   mc.GridFS.BucketName,
		ChunkSizeBytes: int32(mc.GridFS.ChunkSizeBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("opening part store: %w", err)
	}
	return store, nil
}
