package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ReplayProvider streams bars from CSV files on disk. Files are named
// <symbol>_<interval>.csv (e.g. BTC_5m.csv) with columns:
//
//	open_time,open,high,low,close,volume
//
// open_time is either a unix timestamp in seconds/milliseconds or RFC3339.
// An optional pace delays each bar to approximate live delivery.
type ReplayProvider struct {
	dataDir string
	pace    time.Duration
}

// NewReplayProvider constructs a replay provider rooted at dataDir.
func NewReplayProvider(dataDir string, pace time.Duration) (*ReplayProvider, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("market: replay provider requires data_dir")
	}
	return &ReplayProvider{dataDir: dataDir, pace: pace}, nil
}

// Bars implements Provider by reading the symbol's CSV file and streaming
// its rows in order.
func (p *ReplayProvider) Bars(ctx context.Context, symbol string, interval Interval) (<-chan Bar, error) {
	path := filepath.Join(p.dataDir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), interval))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: open replay file for %s: %w", symbol, err)
	}
	bars, err := ReadBarsCSV(f, symbol, interval)
	closeErr := f.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("market: close replay file for %s: %w", symbol, closeErr)
	}

	out := make(chan Bar)
	go func() {
		defer close(out)
		for _, bar := range bars {
			if p.pace > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.pace):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- bar:
			}
		}
	}()
	return out, nil
}

// ReadBarsCSV parses bar rows from a reader. Rows that fail to parse are
// skipped; a header row is tolerated.
func ReadBarsCSV(r io.Reader, symbol string, interval Interval) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("market: read bar csv: %w", err)
	}

	bars := make([]Bar, 0, len(records))
	for _, rec := range records {
		if len(rec) < 6 {
			continue
		}
		openTime, ok := parseBarTime(rec[0])
		if !ok {
			continue
		}
		vals := make([]float64, 5)
		bad := false
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			continue
		}
		bar := Bar{
			Symbol:   strings.ToUpper(symbol),
			Interval: interval,
			OpenTime: openTime,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarTime(field string) (time.Time, bool) {
	field = strings.TrimSpace(field)
	if field == "" {
		return time.Time{}, false
	}
	if ts, err := strconv.ParseInt(field, 10, 64); err == nil {
		// Millisecond timestamps are 13 digits for contemporary dates.
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, field); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Registry hook for market.Config.
func init() {
	RegisterProvider("replay", func(name string, cfg *ProviderConfig) (Provider, error) {
		return NewReplayProvider(cfg.DataDir, cfg.Pace)
	})
}
