package features

import (
	"errors"
	"fmt"
)

// ErrContract is matched by every input-contract violation.
var ErrContract = errors.New("input contract violation")

// ContractError names the table and column whose contract was broken.
// Row is the 1-based data row, or 0 when the problem is not row specific.
type ContractError struct {
	Table  string
	Column string
	Row    int
	Reason string
}

func (e *ContractError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s.%s (row %d): %s", e.Table, e.Column, e.Row, e.Reason)
	}
	if e.Column == "" {
		return fmt.Sprintf("%s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Reason)
}

func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}

func missingColumn(table, column string) error {
	return &ContractError{Table: table, Column: column, Reason: "required column is missing"}
}

func badValue(table, column string, row int, reason string) error {
	return &ContractError{Table: table, Column: column, Row: row, Reason: reason}
}
