package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/homewatt/wattd/internal/storage/types"
)

// ArchiveConfig configures Parquet export of expiring raw readings.
type ArchiveConfig struct {
	// Dir is the directory archive files are written to.
	Dir string

	// Compression is the Parquet compression algorithm: zstd, snappy, none.
	Compression string
}

// readingRow represents a raw reading in Parquet format.
type readingRow struct {
	Timestamp int64    `parquet:"ts"`
	Total     float64  `parquet:"total"`
	PhaseA    *float64 `parquet:"phase_a,optional"`
	PhaseB    *float64 `parquet:"phase_b,optional"`
	Circuits  string   `parquet:"circuits,optional,zstd"`
}

// Archiver exports expiring raw readings to Parquet files, one file per
// retention run, so pruned telemetry stays queryable offline.
type Archiver struct {
	dir   string
	codec compress.Codec
}

// NewArchiver creates an archiver writing into cfg.Dir.
func NewArchiver(cfg ArchiveConfig) *Archiver {
	return &Archiver{
		dir:   cfg.Dir,
		codec: archiveCompression(cfg.Compression),
	}
}

// archiveCompression returns the parquet-go compression codec.
func archiveCompression(algorithm string) compress.Codec {
	switch algorithm {
	case "snappy":
		return &parquet.Snappy
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// ArchiveRaw writes the given readings to a new Parquet file named after
// the run time and returns its path.
func (a *Archiver) ArchiveRaw(readings []types.RawReading, runTime time.Time) (string, error) {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	path := filepath.Join(a.dir, "raw-"+runTime.UTC().Format("2006-01-02_15-04-05")+".parquet")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[readingRow](f, parquet.Compression(a.codec))

	rows := make([]readingRow, len(readings))
	for i := range readings {
		r := &readings[i]
		row := readingRow{
			Timestamp: r.Timestamp,
			Total:     r.Total,
			PhaseA:    r.PhaseA,
			PhaseB:    r.PhaseB,
		}
		// Encoding the typed map back to its storage blob cannot fail;
		// malformed source blobs already decoded to nil.
		row.Circuits, _ = types.EncodeCircuits(r.Circuits)
		rows[i] = row
	}

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write archive rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close archive writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	log.Debug("raw readings archived", "path", path, "rows", len(rows))
	return path, nil
}
