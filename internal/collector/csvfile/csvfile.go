package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/argus/internal/core"
)

// Row is one line of a price file: date,close
type Row struct {
	Date  string  `csv:"date"`
	Close float64 `csv:"close"`
}

// Provider reads <SYMBOL>.csv files from a directory
type Provider struct {
	dir string
}

// New creates a provider rooted at dir
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string {
	return "csv"
}

// Fetch loads the file for symbol and keeps the trailing lookbackDays
// calendar days, counted back from the last row.
func (p *Provider) Fetch(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return core.PriceSeries{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "invalid symbol %q", symbol)
	}

	rows, err := p.read(symbol)
	if err != nil {
		return core.PriceSeries{}, err
	}

	points := make([]core.PricePoint, 0, len(rows))
	for i, r := range rows {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
		if err != nil {
			return core.PriceSeries{}, core.Errorf(core.ErrInvalidSeries, "%s row %d: %v", symbol, i+1, err)
		}
		points = append(points, core.PricePoint{Date: date, Close: r.Close})
	}
	if len(points) == 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrDataUnavailable, "no price data for %s", symbol)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if lookbackDays > 0 {
		cutoff := points[len(points)-1].Date.AddDate(0, 0, -lookbackDays)
		first := sort.Search(len(points), func(i int) bool { return points[i].Date.After(cutoff) })
		points = points[first:]
	}
	return core.NewPriceSeries(symbol, points)
}

func (p *Provider) read(symbol string) ([]Row, error) {
	f, err := os.Open(filepath.Join(p.dir, symbol+".csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.Errorf(core.ErrDataUnavailable, "no price file for %s", symbol)
		}
		return nil, fmt.Errorf("opening price file: %w", err)
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, core.Errorf(core.ErrInvalidSeries, "%s: %v", symbol, err)
	}
	return rows, nil
}

// Write stores a series as <SYMBOL>.csv under dir
func Write(dir string, series core.PriceSeries) error {
	rows := make([]Row, series.Len())
	for i, pt := range series.Points {
		rows[i] = Row{Date: pt.Date.Format(time.DateOnly), Close: pt.Close}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, strings.ToUpper(series.Symbol)+".csv"))
	if err != nil {
		return fmt.Errorf("creating price file: %w", err)
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
