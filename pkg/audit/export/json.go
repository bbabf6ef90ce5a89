package export

import (
	"encoding/json"
	"io"

	"sonate-hq/arbiter/pkg/audit"
)

// ExportJSON writes entries as an indented JSON array.
func ExportJSON(w io.Writer, entries []*audit.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return &audit.ExportError{Format: "json", Rows: len(entries), Cause: err}
	}
	return nil
}
