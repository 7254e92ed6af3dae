package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wbrown/janus-federation/federation"
)

// TestDataConfig specifies a synthetic OHLC price dataset
type TestDataConfig struct {
	NumSymbols int       // Number of stock symbols
	NumDays    int       // Number of days of data
	BarsPerDay int       // Number of bars per day (1=daily, 24=hourly, 390=minute)
	OutputPath string    // Where to store the database ("" = in memory)
	Prefix     string    // URI prefix of predicates, e.g. "price/"
	StartDate  time.Time // Start date for data generation
}

// DefaultOHLCConfig returns a small dataset
// Size: 10 symbols × 30 days × 24 hours = 7,200 bars = 50,400 triples
func DefaultOHLCConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols: 10,
		NumDays:    30,
		BarsPerDay: 24,
		OutputPath: "testdata/ohlc_default",
		Prefix:     "price/",
		StartDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MediumOHLCConfig returns a medium-sized dataset
// Size: 50 symbols × 30 days × 24 hours = 36,000 bars = 252,000 triples
func MediumOHLCConfig() TestDataConfig {
	cfg := DefaultOHLCConfig()
	cfg.NumSymbols = 50
	cfg.OutputPath = "testdata/ohlc_medium"
	return cfg
}

// LargeOHLCConfig returns a large dataset for stress testing
func LargeOHLCConfig() TestDataConfig {
	return TestDataConfig{
		NumSymbols: 500,
		NumDays:    365,
		BarsPerDay: 390,
		OutputPath: "testdata/ohlc_large",
		Prefix:     "price/",
		StartDate:  time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
	}
}

// BuildTestDatabase creates a store holding the generated dataset,
// replacing any database at config.OutputPath. Progress goes to w.
func BuildTestDatabase(config TestDataConfig, w io.Writer) (*BadgerStore, error) {
	var (
		store *BadgerStore
		err   error
	)
	if config.OutputPath == "" {
		store, err = NewInMemoryStore()
	} else {
		if err := os.RemoveAll(config.OutputPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove existing db: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		store, err = NewBadgerStore(config.OutputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	triples := GenerateOHLC(config)

	// each triple is written to three indices; large batches commit slowly
	batchSize := 5000
	fmt.Fprintf(w, "Writing %d triples in batches of %d...\n", len(triples), batchSize)
	for start := 0; start < len(triples); start += batchSize {
		end := start + batchSize
		if end > len(triples) {
			end = len(triples)
		}
		if err := store.Assert(triples[start:end]); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to write batch %d-%d: %w", start, end, err)
		}
		fmt.Fprintf(w, "  Written %d/%d triples (%.1f%%)\n", end, len(triples),
			float64(end)/float64(len(triples))*100)
	}
	return store, nil
}

// GenerateOHLC creates seven triples per bar: symbol, time, minute of day
// and the four prices
func GenerateOHLC(config TestDataConfig) []federation.Triple {
	totalBars := config.NumSymbols * config.NumDays * config.BarsPerDay
	triples := make([]federation.Triple, 0, totalBars*7)
	pred := func(name string) federation.Term {
		return federation.NewURI(config.Prefix + name)
	}
	decimal := func(f float64) federation.Term {
		return federation.NewTypedLiteral(strconv.FormatFloat(f, 'f', 2, 64), federation.XSDDecimal)
	}
	minutesPerBar := (24 * 60) / config.BarsPerDay

	barIdx := 0
	for symbolIdx := 0; symbolIdx < config.NumSymbols; symbolIdx++ {
		symbol := federation.NewURI(fmt.Sprintf("symbol/TICK%04d", symbolIdx))
		for day := 0; day < config.NumDays; day++ {
			for bar := 0; bar < config.BarsPerDay; bar++ {
				barIdx++
				subject := federation.NewURI(fmt.Sprintf("bar/%d", barIdx))
				barTime := config.StartDate.AddDate(0, 0, day).Add(time.Duration(bar*minutesPerBar) * time.Minute)

				// simple deterministic walk
				open := 100.0 + float64(symbolIdx)*10.0 + float64(day)*0.1 + float64(bar)*0.01

				triples = append(triples,
					federation.NewTriple(subject, pred("symbol"), symbol),
					federation.NewTriple(subject, pred("time"),
						federation.NewTypedLiteral(barTime.Format(time.RFC3339), federation.XSDDateTime)),
					federation.NewTriple(subject, pred("minute-of-day"), federation.NewInteger(int64(bar*minutesPerBar))),
					federation.NewTriple(subject, pred("open"), decimal(open)),
					federation.NewTriple(subject, pred("high"), decimal(open+2.0)),
					federation.NewTriple(subject, pred("low"), decimal(open-1.5)),
					federation.NewTriple(subject, pred("close"), decimal(open+0.5)),
				)
			}
		}
	}
	return triples
}
