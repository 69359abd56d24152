package report

import (
	"github.com/gocarina/gocsv"
	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/core"
)

// ScreenRow is one line of screen.csv
type ScreenRow struct {
	Symbol         string      `csv:"symbol"`
	Recommendation core.Action `csv:"recommendation"`
	Confidence     float64     `csv:"confidence"`
	Momentum       float64     `csv:"momentum"`
	RSI            float64     `csv:"rsi"`
	Trend          float64     `csv:"trend"`
	Sentiment      float64     `csv:"sentiment"`
	Overall        float64     `csv:"overall"`
}

func screenRows(results []analysis.Analysis) []*ScreenRow {
	rows := make([]*ScreenRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, &ScreenRow{
			Symbol:         r.Symbol,
			Recommendation: r.Recommendation,
			Confidence:     r.Confidence,
			Momentum:       r.Signals.Momentum,
			RSI:            r.Signals.RSI,
			Trend:          r.Signals.Trend,
			Sentiment:      r.Signals.Sentiment,
			Overall:        r.Signals.Overall,
		})
	}
	return rows
}

// ScreenCSV encodes screen rows with a header line.
func ScreenCSV(results []analysis.Analysis) ([]byte, error) {
	return gocsv.MarshalBytes(screenRows(results))
}

// ParseScreenCSV decodes screen.csv content.
func ParseScreenCSV(data []byte) ([]*ScreenRow, error) {
	var rows []*ScreenRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
