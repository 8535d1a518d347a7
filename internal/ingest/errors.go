package ingest

import (
	"errors"

	"github.com/thebtf/promptvault/internal/extract"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no extractor handles.
	ErrUnsupportedFormat = extract.ErrUnsupportedFormat
	// ErrDecodeFailure is returned when a file cannot be read as its format.
	ErrDecodeFailure = extract.ErrDecodeFailure
	// ErrMissingUser is returned when an import carries no owner.
	ErrMissingUser = errors.New("user id is required")
	// ErrPersistenceFailure is returned when the bulk write fails.
	ErrPersistenceFailure = errors.New("saving prompts failed")
	// ErrEnrichmentFailure wraps per-item enrichment errors. It is logged and
	// never ends an import.
	ErrEnrichmentFailure = errors.New("prompt enrichment failed")
)

// UserMessage returns a human-readable explanation of an import error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "Unsupported file type. Upload a .xlsx, .xls, .csv, .docx or .txt file."
	case errors.Is(err, ErrDecodeFailure):
		return "The file could not be read. It may be damaged or saved in a different format."
	case errors.Is(err, ErrMissingUser):
		return "No user is set for this import."
	case errors.Is(err, ErrPersistenceFailure):
		return "Saving prompts failed. Nothing after the failed batch was stored."
	default:
		return "Import failed: " + err.Error()
	}
}
