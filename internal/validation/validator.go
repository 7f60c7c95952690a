// Package validation provides reusable checks run at pipeline stage boundaries.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paveg/sectorcast/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	Len() int
	Width() int
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	df      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(df ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		df:      df,
		columns: columns,
		op:      op,
	}
}

// Validate checks if all columns exist in the DataFrame
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewColumnNotFoundError(v.op, column)
		}
	}
	return nil
}

// LengthValidator validates row count consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		return errors.NewDataIntegrityError(v.op,
			fmt.Sprintf("%s: expected %d rows, got %d", v.context, v.expected, v.actual))
	}
	return nil
}

// NotEmptyValidator rejects tables without rows
type NotEmptyValidator struct {
	df   ColumnProvider
	op   string
	name string
}

// NewNotEmptyValidator creates a validator for empty table checks
func NewNotEmptyValidator(df ColumnProvider, op, name string) *NotEmptyValidator {
	return &NotEmptyValidator{df: df, op: op, name: name}
}

// Validate checks that the table has at least one row
func (v *NotEmptyValidator) Validate() error {
	if v.df.Len() == 0 {
		return errors.NewDataIntegrityError(v.op, fmt.Sprintf("%s has no rows", v.name))
	}
	return nil
}

// DisjointValidator checks that named tables share no column outside an allowed key set.
type DisjointValidator struct {
	tables map[string]ColumnProvider
	keys   map[string]struct{}
	op     string
}

// NewDisjointValidator creates a validator for column collisions across tables
func NewDisjointValidator(tables map[string]ColumnProvider, op string, keys ...string) *DisjointValidator {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	return &DisjointValidator{tables: tables, keys: allowed, op: op}
}

// Validate reports the first shared column, naming both owners.
func (v *DisjointValidator) Validate() error {
	names := make([]string, 0, len(v.tables))
	for name := range v.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	owner := make(map[string]string)
	for _, name := range names {
		for _, column := range v.tables[name].Columns() {
			if _, isKey := v.keys[column]; isKey {
				continue
			}
			if prev, seen := owner[column]; seen {
				return errors.NewSchemaError(v.op, column,
					fmt.Sprintf("column appears in both %s and %s", prev, name))
			}
			owner[column] = name
		}
	}
	return nil
}

// PrefixValidator checks that every non-key column carries the given prefix.
type PrefixValidator struct {
	df     ColumnProvider
	prefix string
	keys   map[string]struct{}
	op     string
}

// NewPrefixValidator creates a validator for column name prefixes
func NewPrefixValidator(df ColumnProvider, op, prefix string, keys ...string) *PrefixValidator {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	return &PrefixValidator{df: df, prefix: prefix, keys: allowed, op: op}
}

// Validate checks column prefixes
func (v *PrefixValidator) Validate() error {
	for _, column := range v.df.Columns() {
		if _, isKey := v.keys[column]; isKey {
			continue
		}
		if !strings.HasPrefix(column, v.prefix) {
			return errors.NewSchemaError(v.op, column, fmt.Sprintf("missing prefix %q", v.prefix))
		}
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns is a convenience function for column validation
func ValidateColumns(df ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(df, op, columns...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateNotEmpty is a convenience function for empty table validation
func ValidateNotEmpty(df ColumnProvider, op, name string) error {
	return NewNotEmptyValidator(df, op, name).Validate()
}

// ValidateDisjoint is a convenience function for cross-table collision checks
func ValidateDisjoint(tables map[string]ColumnProvider, op string, keys ...string) error {
	return NewDisjointValidator(tables, op, keys...).Validate()
}
