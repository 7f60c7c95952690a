package io

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/series"
)

type columnKind int

const (
	kindString columnKind = iota
	kindBool
	kindInt
	kindFloat
)

const (
	trueStr  = "true"
	falseStr = "false"
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) == 0 {
		return dataframe.New(), nil
	}

	var headers []string
	dataRows := records
	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
	}

	nulls := make(map[string]struct{}, len(r.options.NullValues))
	for _, v := range r.options.NullValues {
		nulls[v] = struct{}{}
	}

	seriesList := make([]dataframe.ISeries, 0, len(headers))
	for i, header := range headers {
		data := make([]string, len(dataRows))
		valid := make([]bool, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				data[j] = row[i]
			}
			_, isNull := nulls[data[j]]
			valid[j] = !isNull
		}

		s, err := r.createSeries(header, data, valid)
		if err != nil {
			for _, built := range seriesList {
				built.Release()
			}
			return nil, fmt.Errorf("creating series for column %s: %w", header, err)
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

func (r *CSVReader) createSeries(name string, data []string, valid []bool) (dataframe.ISeries, error) {
	switch inferKind(data, valid) {
	case kindBool:
		values := make([]bool, len(data))
		for i, v := range data {
			values[i] = valid[i] && strings.EqualFold(v, trueStr)
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindInt:
		values := make([]int64, len(data))
		for i, v := range data {
			if valid[i] {
				values[i], _ = strconv.ParseInt(v, 10, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindFloat:
		values := make([]float64, len(data))
		for i, v := range data {
			if valid[i] {
				values[i], _ = strconv.ParseFloat(v, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return series.NewNullable(name, data, valid, r.mem)
	}
}

// inferKind picks the narrowest type every non-null value parses as.
// A column with no values at all is read as float64, so it stays numeric
// once its nulls are filled.
func inferKind(data []string, valid []bool) columnKind {
	canBeBool, canBeInt, canBeFloat := true, true, true
	seen := false

	for i, value := range data {
		if !valid[i] {
			continue
		}
		seen = true

		if canBeBool {
			lower := strings.ToLower(value)
			canBeBool = lower == trueStr || lower == falseStr
		}
		if canBeInt {
			_, err := strconv.ParseInt(value, 10, 64)
			canBeInt = err == nil
		}
		if canBeFloat {
			_, err := strconv.ParseFloat(value, 64)
			canBeFloat = err == nil
		}
		if !canBeBool && !canBeInt && !canBeFloat {
			return kindString
		}
	}

	switch {
	case !seen:
		return kindFloat
	case canBeBool:
		return kindBool
	case canBeInt:
		return kindInt
	case canBeFloat:
		return kindFloat
	default:
		return kindString
	}
}

// Write writes the DataFrame to CSV format. Null values are written as empty fields.
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	columns := df.Columns()
	if w.options.Header {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	cols := make([]dataframe.ISeries, len(columns))
	for j, name := range columns {
		cols[j], _ = df.Column(name)
	}

	row := make([]string, len(columns))
	for i := 0; i < df.Len(); i++ {
		for j, col := range cols {
			row[j] = col.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
