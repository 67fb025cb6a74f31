package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/logging"
)

// errImportFailed is returned when at least one file could not be imported.
var errImportFailed = errors.New("one or more imports failed")

// fileReport is the output for one input file.
type fileReport struct {
	File   string           `json:"file" yaml:"file" toml:"file"`
	Result *importer.Result `json:"result,omitempty" yaml:"result,omitempty" toml:"result,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	Code   string           `json:"code,omitempty" yaml:"code,omitempty" toml:"code,omitempty"`
	Line   int              `json:"line,omitempty" yaml:"line,omitempty" toml:"line,omitempty"`
}

type runOptions struct {
	format       string
	logLevel     string
	logFormat    string
	maxLineBytes int
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Import one or more files (use - for stdin)",
		Long: `Import one or more files and print one report per file.

FILE may be a glob pattern, including ** for recursive matches, for
example "exports/**/*.csv". Quote patterns so the shell does not expand
them first.`,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "json", "yaml", "toml":
				return nil
			}
			return fmt.Errorf("unknown format %q (want json, yaml or toml)", opts.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImports(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format (json, yaml, toml)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().IntVar(&opts.maxLineBytes, "max-line-bytes", 0, "Longest accepted input line; defaults to IMPORT_MAX_LINE_BYTES")

	return cmd
}

// newImporter builds an importer from the environment and the flags.
func newImporter(cmd *cobra.Command, opts runOptions) (*importer.Importer, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	maxLine := cfg.Import.MaxLineBytes
	if opts.maxLineBytes > 0 {
		maxLine = opts.maxLineBytes
	}

	logger := logging.New(cmd.ErrOrStderr(), level, opts.logFormat)
	im := importer.New(
		importer.WithLogger(logger),
		importer.WithMaxLineBytes(maxLine),
		importer.WithContextCheckInterval(cfg.Import.ContextCheckInterval),
	)
	return im, logger, nil
}

func runImports(cmd *cobra.Command, paths []string, opts runOptions) error {
	im, logger, err := newImporter(cmd, opts)
	if err != nil {
		return err
	}

	paths, err = expandPaths(paths)
	if err != nil {
		return err
	}

	reports := make([]fileReport, 0, len(paths))
	failed := false
	for _, path := range paths {
		report := importFile(cmd, im, logger, path)
		if report.Error != "" {
			failed = true
		}
		reports = append(reports, report)
	}

	if err := writeReports(cmd.OutOrStdout(), opts.format, reports); err != nil {
		return err
	}
	if failed {
		return errImportFailed
	}
	return nil
}

// importFile imports one path. Failures are reported, not returned.
func importFile(cmd *cobra.Command, im *importer.Importer, logger *slog.Logger, path string) fileReport {
	report := fileReport{File: path}

	res, err := im.Run(cmd.Context(), source(cmd, path))
	if err != nil {
		report.Error = err.Error()
		report.Code = core.MapError(err).Code
		var se *importer.StreamError
		if errors.As(err, &se) {
			report.Line = se.Line
		}
		logger.Error("import failed", "file", path, "error", err)
		return report
	}

	report.Result = res
	return report
}

// source returns the importer input for path. Files are opened lazily by
// the importer, which also closes them.
func source(cmd *cobra.Command, path string) any {
	if path == "-" {
		return cmd.InOrStdin()
	}
	return importer.BlobFunc(func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// expandPaths replaces glob patterns with the files they match. A pattern
// that matches nothing is kept so that it is reported as missing.
func expandPaths(args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "-" || !strings.ContainsAny(arg, "*?[{") {
			paths = append(paths, arg)
			continue
		}

		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", arg, err)
		}
		if len(matches) == 0 {
			paths = append(paths, arg)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		// TOML documents are tables, so the list gets a key
		doc := struct {
			Reports []fileReport `toml:"reports"`
		}{reports}
		return toml.NewEncoder(w).Encode(doc)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
}
