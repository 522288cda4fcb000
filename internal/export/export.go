package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format        ExportFormat
	StartTime     time.Time
	EndTime       time.Time
	PoolFilter    string // pool name or address
	OnlyAvailable bool   // skip snapshots without a price
	OutputDir     string
}

// SnapshotExporter writes price history to files.
type SnapshotExporter struct {
	logger *zap.Logger
}

// NewSnapshotExporter creates a new snapshot exporter
func NewSnapshotExporter(logger *zap.Logger) *SnapshotExporter {
	return &SnapshotExporter{
		logger: logger.Named("export"),
	}
}

// Row is the flat export form of a snapshot.
type Row struct {
	Pool      string          `json:"pool"`
	Address   string          `json:"address"`
	RawPrice  uint64          `json:"raw_price"`
	Price     decimal.Decimal `json:"price"`
	Reserve   uint64          `json:"total_lamports"`
	Supply    uint64          `json:"pool_token_supply"`
	Slot      uint64          `json:"slot"`
	Available bool            `json:"available"`
	Stale     bool            `json:"stale"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// CSVHeaders returns the column names of ToCSV.
func CSVHeaders() []string {
	return []string{"timestamp", "pool", "address", "raw_price", "price", "total_lamports", "pool_token_supply", "slot", "available", "stale", "reason"}
}

// ToCSV formats the row as CSV fields.
func (r Row) ToCSV() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Pool,
		r.Address,
		strconv.FormatUint(r.RawPrice, 10),
		r.Price.String(),
		strconv.FormatUint(r.Reserve, 10),
		strconv.FormatUint(r.Supply, 10),
		strconv.FormatUint(r.Slot, 10),
		strconv.FormatBool(r.Available),
		strconv.FormatBool(r.Stale),
		r.Reason,
	}
}

func newRow(s monitor.Snapshot) Row {
	return Row{
		Pool:      s.Pool.Name,
		Address:   s.Pool.Address.String(),
		RawPrice:  s.Price,
		Price:     s.Decimal,
		Reserve:   s.Reserve,
		Supply:    s.Supply,
		Slot:      s.Slot,
		Available: s.Available,
		Stale:     s.Stale,
		Reason:    s.Reason,
		Timestamp: s.UpdatedAt,
	}
}

// ExportSnapshots exports snapshots based on the provided options
func (se *SnapshotExporter) ExportSnapshots(snaps []monitor.Snapshot, options ExportOptions) (string, error) {
	rows := se.filterSnapshots(snaps, options)
	if len(rows) == 0 {
		return "", fmt.Errorf("no snapshots match the export criteria")
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	filename := se.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = se.exportToCSV(rows, outputPath)
	case FormatJSON:
		err = se.exportToJSON(rows, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	se.logger.Info("Snapshots exported",
		zap.String("file", outputPath),
		zap.Int("count", len(rows)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (se *SnapshotExporter) filterSnapshots(snaps []monitor.Snapshot, options ExportOptions) []Row {
	var rows []Row
	for _, s := range snaps {
		if !options.StartTime.IsZero() && s.UpdatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && s.UpdatedAt.After(options.EndTime) {
			continue
		}
		if options.PoolFilter != "" && s.Pool.Name != options.PoolFilter && s.Pool.Address.String() != options.PoolFilter {
			continue
		}
		if options.OnlyAvailable && !s.Available {
			continue
		}
		rows = append(rows, newRow(s))
	}
	return rows
}

func (se *SnapshotExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "prices_all"
	if options.PoolFilter != "" {
		prefix = "prices_" + options.PoolFilter
		if len(options.PoolFilter) > 8 {
			prefix = "prices_" + options.PoolFilter[:8]
		}
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (se *SnapshotExporter) exportToCSV(rows []Row, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(r.ToCSV()); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (se *SnapshotExporter) exportToJSON(rows []Row, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime    time.Time     `json:"export_time"`
		SnapshotCount int           `json:"snapshot_count"`
		Summary       []PoolSummary `json:"summary"`
		Snapshots     []Row         `json:"snapshots"`
	}{
		ExportTime:    time.Now(),
		SnapshotCount: len(rows),
		Summary:       Summarize(rows),
		Snapshots:     rows,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// PoolSummary aggregates the exported rows of one pool.
type PoolSummary struct {
	Pool        string          `json:"pool"`
	Address     string          `json:"address"`
	Count       int             `json:"count"`
	StaleCount  int             `json:"stale_count"`
	Unavailable int             `json:"unavailable_count"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	LastPrice   decimal.Decimal `json:"last_price"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
}

// Summarize groups time-ordered rows by pool address, in order of first appearance.
// Stale and unavailable rows are counted but do not move the price range.
func Summarize(rows []Row) []PoolSummary {
	index := make(map[string]int)
	priced := make(map[int]bool)
	var out []PoolSummary
	for _, r := range rows {
		i, ok := index[r.Address]
		if !ok {
			i = len(out)
			index[r.Address] = i
			out = append(out, PoolSummary{Pool: r.Pool, Address: r.Address, StartDate: r.Timestamp})
		}
		s := &out[i]
		s.Count++
		s.EndDate = r.Timestamp
		switch {
		case !r.Available:
			s.Unavailable++
			continue
		case r.Stale:
			s.StaleCount++
			continue
		}
		if !priced[i] {
			priced[i] = true
			s.MinPrice, s.MaxPrice = r.Price, r.Price
		}
		s.MinPrice = decimal.Min(s.MinPrice, r.Price)
		s.MaxPrice = decimal.Max(s.MaxPrice, r.Price)
		s.LastPrice = r.Price
	}
	return out
}
