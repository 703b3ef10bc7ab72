package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical-ai/appraisal/cmd/appraisal/ui"
	"github.com/spherical-ai/appraisal/internal/app"
	"github.com/spherical-ai/appraisal/internal/config"
	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
	"github.com/spherical-ai/appraisal/internal/pipeline"
)

// openApp loads the configuration and wires the pipeline. Logs go to stderr so
// they never mix with command output.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: "appraisal-cli",
	})

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return a, nil
}

// readDocument reads path, or stdin when path is "-".
func readDocument(path string, stdin io.Reader) (domain.RawDocument, error) {
	var (
		data  []byte
		err   error
		label = filepath.Base(path)
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
		label = "stdin"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return domain.RawDocument{}, fmt.Errorf("%s is empty", path)
	}
	return domain.NewRawDocument(label, string(data)), nil
}

// resultErr turns a failed run into a command error.
func resultErr(r *pipeline.Result) error {
	switch r.Status {
	case pipeline.StatusFailed, pipeline.StatusUpstreamFailure:
		if r.Error != nil {
			return fmt.Errorf("%s: %s", r.Status, r.Error.Message)
		}
		return fmt.Errorf("%s", r.Status)
	}
	return nil
}

func printSummary(r *pipeline.Result) {
	rows := [][]string{
		{"Status", string(r.Status)},
		{"Text units", fmt.Sprintf("%d", r.Units)},
		{"Skipped units", fmt.Sprintf("%d", r.SkippedUnits)},
		{"Rows parsed", fmt.Sprintf("%d", r.RowsParsed)},
		{"Duration", ui.FormatDuration(r.Duration)},
	}
	if r.Shortfall > 0 {
		rows = append(rows, []string{"Rows missing", fmt.Sprintf("%d", r.Shortfall)})
	}
	ui.Table([]string{"Metric", "Value"}, rows)

	if ui.Verbose() {
		for _, d := range r.Diagnostics {
			ui.Warning("unit %d line %d: %s", d.Unit, d.Line, d.Reason)
		}
	}
}
