package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/contacts/internal/watch"
)

type watchOptions struct {
	runOptions
	extensions []string
	debounce   time.Duration
	existing   bool
}

func watchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Import files as they are written under a directory",
		Long: `Watch DIR and its subdirectories and import every matching file once
it has stopped changing. One JSON report per file is written to stdout,
one per line. Failed imports are reported and watching continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchImports(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.extensions, "ext", watch.DefaultExtensions, "File extensions to import")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", watch.DefaultDebounce, "Quiet period before a file is imported")
	cmd.Flags().BoolVar(&opts.existing, "existing", false, "Import matching files already present")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().IntVar(&opts.maxLineBytes, "max-line-bytes", 0, "Longest accepted input line; defaults to IMPORT_MAX_LINE_BYTES")

	return cmd
}

func watchImports(cmd *cobra.Command, dir string, opts watchOptions) error {
	im, logger, err := newImporter(cmd, opts.runOptions)
	if err != nil {
		return err
	}

	w, err := watch.New(dir, watch.Config{Debounce: opts.debounce, Extensions: opts.extensions}, logger)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var existing []string
	if opts.existing {
		if existing, err = existingFiles(dir, opts.extensions); err != nil {
			w.Close()
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	emit := func(path string) error {
		return enc.Encode(importFile(cmd, im, logger, path))
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		for _, path := range existing {
			if err := emit(path); err != nil {
				return err
			}
		}
		for path := range w.Events() {
			if err := emit(path); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// existingFiles lists the files under dir with one of the extensions.
func existingFiles(dir string, extensions []string) ([]string, error) {
	alts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		alts = append(alts, strings.TrimPrefix(ext, "."))
	}
	pattern := "**/*.{" + strings.Join(alts, ",") + "}"

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	for i, m := range matches {
		matches[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return matches, nil
}
