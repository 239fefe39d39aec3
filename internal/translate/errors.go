package translate

import (
	"fmt"

	"github.com/MimeLyc/polyglot-cms/internal/content"
)

// BackendError reports a translation backend failure after all retry
// attempts were exhausted. It carries the language pair so callers can name
// the failing target: fatal on the synchronous creation path, logged and
// dropped on the background path.
type BackendError struct {
	Source   content.Language
	Target   content.Language
	Attempts int
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("translation %s -> %s failed after %d attempts: %v",
		e.Source, e.Target, e.Attempts, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
