package fetcher

import (
	"errors"
	"fmt"
)

// ErrTooLarge is wrapped by RetrievalError when a playlist body exceeds the
// configured size limit.
var ErrTooLarge = errors.New("playlist exceeds size limit")

// RetrievalError reports a failed playlist download. StatusCode is zero when
// the request never produced a response.
type RetrievalError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retrieve %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsRetrievalError reports whether err is or wraps a *RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}
