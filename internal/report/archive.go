package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/argus/internal/reflection"
	"github.com/newthinker/argus/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact file names inside a date directory
const (
	RunFile    = "run.json"
	ReportFile = "report.md"
	ScreenFile = "screen.csv"
)

type artifact struct {
	name string
	data []byte
}

// Exporter persists a finished run
type Exporter interface {
	Export(ctx context.Context, run *Run) ([]string, error)
}

// Archive writes runs as YYYY-MM-DD/{run.json,report.md,screen.csv}
type Archive struct {
	store  archive.Storage
	logger *zap.Logger
}

// NewArchive creates an archive exporter over store
func NewArchive(store archive.Storage, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{store: store, logger: logger}
}

// Export writes every artifact of the run and returns the written paths.
// screen.csv is only written when the run has screen rows.
func (a *Archive) Export(ctx context.Context, run *Run) ([]string, error) {
	dir := run.Date()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run: %w", err)
	}
	files := []artifact{
		{RunFile, data},
		{ReportFile, []byte(Markdown(run))},
	}

	if rows := reflection.ScreenRows(run.Records); len(rows) > 0 {
		csv, err := ScreenCSV(rows)
		if err != nil {
			return nil, fmt.Errorf("encoding screen: %w", err)
		}
		files = append(files, artifact{ScreenFile, csv})
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		p := path.Join(dir, f.name)
		if err := a.store.Write(ctx, p, f.data); err != nil {
			return written, fmt.Errorf("writing %s: %w", p, err)
		}
		written = append(written, p)
		a.logger.Info("wrote report artifact", zap.String("run_id", run.ID), zap.String("path", p))
	}
	return written, nil
}

// Dates lists archived run dates, newest first.
func (a *Archive) Dates(ctx context.Context) ([]string, error) {
	paths, err := a.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var dates []string
	for _, p := range paths {
		dir, file := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")
		if file != RunFile || !isDate(dir) || seen[dir] {
			continue
		}
		seen[dir] = true
		dates = append(dates, dir)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// ByDate reads the run archived under date (YYYY-MM-DD).
func (a *Archive) ByDate(ctx context.Context, date string) (*Run, error) {
	if !isDate(date) {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}
	data, err := a.store.Read(ctx, path.Join(date, RunFile))
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", date, RunFile, err)
	}
	return &run, nil
}

// Latest reads the most recent archived run.
func (a *Archive) Latest(ctx context.Context) (*Run, error) {
	dates, err := a.Dates(ctx)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no archived runs", archive.ErrNotFound)
	}
	return a.ByDate(ctx, dates[0])
}

// ReportMarkdown reads report.md for date.
func (a *Archive) ReportMarkdown(ctx context.Context, date string) (string, error) {
	if !isDate(date) {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}
	data, err := a.store.Read(ctx, path.Join(date, ReportFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsNotFound reports whether err means the run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, archive.ErrNotFound)
}

func isDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
