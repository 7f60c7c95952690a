package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/sectorcast/internal/dataframe"
)

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	readProps := pqarrow.ArrowReadProperties{BatchSize: int64(r.options.BatchSize)}
	arrowReader, err := pqarrow.NewFileReader(pqReader, readProps, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.tableToDataFrame(table)
}

func (r *ParquetReader) tableToDataFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	schema := table.Schema()
	seriesList := make([]dataframe.ISeries, 0, table.NumCols())

	for i := 0; i < int(table.NumCols()); i++ {
		field := schema.Field(i)
		arr, err := r.flatten(field, table.Column(i).Data())
		if err != nil {
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}

		s, err := dataframe.SeriesFromArray(field.Name, arr)
		arr.Release()
		if err != nil {
			for _, built := range seriesList {
				built.Release()
			}
			return nil, err
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// flatten returns a single array holding every chunk of the column.
func (r *ParquetReader) flatten(field arrow.Field, chunked *arrow.Chunked) (arrow.Array, error) {
	chunks := chunked.Chunks()
	switch len(chunks) {
	case 0:
		return array.MakeArrayOfNull(r.mem, field.Type, 0), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, r.mem)
	}
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	table := w.dataFrameToTable(df)
	defer table.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec(w.options.Compression)),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	// The parquet file writer closes any io.Closer it is given; the sink stays
	// owned by the caller.
	writer, err := pqarrow.NewFileWriter(table.Schema(), writeOnly{w.writer}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	rowGroup := int64(w.options.BatchSize)
	if rowGroup <= 0 {
		rowGroup = DefaultBatchSize
	}
	if err := writer.WriteTable(table, rowGroup); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

type writeOnly struct {
	io.Writer
}

func codec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// dataFrameToTable builds an Arrow table that shares the frame's column buffers.
func (w *ParquetWriter) dataFrameToTable(df *dataframe.DataFrame) arrow.Table {
	names := df.Columns()
	fields := make([]arrow.Field, 0, len(names))
	columns := make([]arrow.Column, 0, len(names))

	for _, name := range names {
		col, _ := df.Column(name)
		arr := col.Array()

		field := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()

		column := arrow.NewColumn(field, chunked)
		chunked.Release()

		fields = append(fields, field)
		columns = append(columns, *column)
	}

	table := array.NewTable(arrow.NewSchema(fields, nil), columns, int64(df.Len()))
	for i := range columns {
		columns[i].Release()
	}
	return table
}
