package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rotisserie/eris"
)

// FormatError reports a gazetteer that cannot be trusted: a missing column,
// an unparseable or out-of-range coordinate, an empty name, or a non-point
// geometry. Row is 1-based over data records (0 when the problem is with the
// file as a whole, such as a missing header column).
type FormatError struct {
	Path   string
	Row    int
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("gazetteer: %s: row %d: field %q: %s", e.Path, e.Row, e.Field, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("gazetteer: %s: row %d: %s", e.Path, e.Row, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("gazetteer: %s: field %q: %s", e.Path, e.Field, e.Reason)
	default:
		return fmt.Sprintf("gazetteer: %s: %s", e.Path, e.Reason)
	}
}

// streamError reports a failure from a streaming reader. Cancellation and
// file system errors keep their cause; anything else is malformed input.
func streamError(err error, display string, row int) error {
	var pathErr *fs.PathError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &pathErr) {
		return eris.Wrapf(err, "gazetteer: read %s", display)
	}
	return &FormatError{Path: display, Row: row, Reason: err.Error()}
}
