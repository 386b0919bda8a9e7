package export

import (
	"encoding/json"
	"io"

	dErrors "dealroom/pkg/domain-errors"
)

// WriteJSON renders a report as indented JSON. Output is deterministic:
// rows are pre-sorted by Build and encoding/json orders map keys.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode report")
	}
	return nil
}
