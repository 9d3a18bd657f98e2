package backend

import (
	"context"

	"expenseledger/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// MirrorResult contains the journal writer and optional cleanup function
type MirrorResult struct {
	Journal sheets.JournalWriter
	Cleanup CleanupFunc
}

// Factory creates journal mirrors based on configuration
type Factory interface {
	CreateMirror(ctx context.Context, config Config) (*MirrorResult, error)
}

// Config holds configuration for mirror creation
type Config struct {
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// MirrorType selects where the change journal is written
type MirrorType string

const (
	MemoryMirror MirrorType = "memory"
	SheetsMirror MirrorType = "sheets"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is known
func (mt MirrorType) IsValid() bool {
	switch mt {
	case MemoryMirror, SheetsMirror:
		return true
	default:
		return false
	}
}
