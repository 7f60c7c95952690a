package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
)

// Format identifies a table file format.
type Format int

const (
	// FormatCSV is comma separated text with a header row.
	FormatCSV Format = iota
	// FormatParquet is Apache Parquet.
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return 0, errors.NewInvalidInputError("FormatFromPath",
			fmt.Sprintf("unsupported file extension %q in %s", filepath.Ext(path), path))
	}
}

// ReadFile reads a table from path using the format implied by its extension.
// A missing file is reported as a MissingInputError.
func ReadFile(path string, mem memory.Allocator) (*dataframe.DataFrame, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingInputError("ReadFile", path, err)
		}
		return nil, errors.NewIOError("ReadFile", path, err)
	}
	defer f.Close()

	var reader DataReader
	switch format {
	case FormatParquet:
		reader = NewParquetReader(f, DefaultParquetOptions(), mem)
	default:
		reader = NewCSVReader(f, DefaultCSVOptions(), mem)
	}

	df, err := reader.Read()
	if err != nil {
		return nil, errors.NewIOError("ReadFile", path, err)
	}
	return df, nil
}

// WriteFile writes df to path in the format implied by its extension.
// The file is created or truncated; parent directories are created as needed.
func WriteFile(path string, df *dataframe.DataFrame) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewIOError("WriteFile", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("WriteFile", path, err)
	}

	var writer DataWriter
	switch format {
	case FormatParquet:
		writer = NewParquetWriter(f, DefaultParquetOptions())
	default:
		writer = NewCSVWriter(f, DefaultCSVOptions())
	}

	if err := writer.Write(df); err != nil {
		_ = f.Close()
		return errors.NewIOError("WriteFile", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.NewIOError("WriteFile", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIOError("WriteFile", path, err)
	}
	return nil
}
