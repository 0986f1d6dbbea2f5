package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes data as JSON. Tokens and emails are written
// without HTML escaping.
type JSONFormatter struct {
	// Compact writes one value per line, for streams such as `watch`.
	Compact bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !f.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
