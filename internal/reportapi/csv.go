package reportapi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cn-dashboard/internal/models"
)

const (
	batchSize  = 1000
	maxWorkers = 8
)

var _ Fetcher = (*CSVSource)(nil)

// CSVSource serves reports from a CSV export. The header row names the
// columns with the upstream field names and must include "date". The file
// is read on the first successful fetch and kept in memory.
type CSVSource struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	records []models.DailyReportRecord
}

func NewCSVSource(path string, logger *slog.Logger) *CSVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{path: path, logger: logger}
}

func (s *CSVSource) FetchReport(ctx context.Context, start, end time.Time) ([]models.DailyReportRecord, error) {
	records, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	rng, err := models.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}

	var out []models.DailyReportRecord
	for _, rec := range records {
		day, err := rec.Day()
		if err == nil && rng.Contains(day) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *CSVSource) ensureLoaded(ctx context.Context) ([]models.DailyReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	start := time.Now()
	records, skipped, err := parseCSV(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("process csv: %w", err)
	}

	models.SortByDate(records)
	s.records = records
	s.loaded = true
	s.logger.Info("report csv loaded",
		"path", s.path,
		"records", len(records),
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return records, nil
}

// parseCSV reads rows in batches and parses each batch concurrently,
// keeping file order. Rows with an unparseable date or counter are
// skipped.
func parseCSV(ctx context.Context, r io.Reader) ([]models.DailyReportRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	dateCol := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == "date" {
			dateCol = i
		}
	}
	if dateCol < 0 {
		return nil, 0, fmt.Errorf("missing date column")
	}

	var records []models.DailyReportRecord
	skipped := 0
	batch := make([][]string, 0, batchSize)

	flush := func() error {
		parsed, bad, err := parseBatch(ctx, header, dateCol, batch)
		if err != nil {
			return err
		}
		records = append(records, parsed...)
		skipped += bad
		batch = batch[:0]
		return nil
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, 0, err
		}
	}

	return records, skipped, nil
}

func parseBatch(ctx context.Context, header []string, dateCol int, batch [][]string) ([]models.DailyReportRecord, int, error) {
	type parsedRow struct {
		rec   models.DailyReportRecord
		valid bool
	}
	rows := make([]parsedRow, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, row := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := parseRow(header, dateCol, row)
			rows[i] = parsedRow{rec: rec, valid: err == nil}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]models.DailyReportRecord, 0, len(rows))
	bad := 0
	for _, r := range rows {
		if !r.valid {
			bad++
			continue
		}
		out = append(out, r.rec)
	}
	return out, bad, nil
}

func parseRow(header []string, dateCol int, row []string) (models.DailyReportRecord, error) {
	if dateCol >= len(row) {
		return models.DailyReportRecord{}, fmt.Errorf("insufficient columns")
	}
	date := strings.TrimSpace(row[dateCol])
	if _, err := models.ParseDay(date); err != nil {
		return models.DailyReportRecord{}, err
	}

	fields := make(map[string]float64, len(row))
	for i, cell := range row {
		if i == dateCol || i >= len(header) {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return models.DailyReportRecord{}, fmt.Errorf("column %s: %w", header[i], err)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return models.DailyReportRecord{}, fmt.Errorf("column %s: %q is not a finite number", header[i], cell)
		}
		fields[header[i]] = v
	}
	return models.NewRecord(date, fields), nil
}
