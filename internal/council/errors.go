package council

import "fmt"

// QueryTooLongError is raised by Stage 1 before yielding any event when
// the user's query exceeds MaxQueryChars (§4.4.1, §7).
type QueryTooLongError struct {
	Chars int
	Limit int
}

func (e *QueryTooLongError) Error() string {
	return fmt.Sprintf("query length %d exceeds limit %d", e.Chars, e.Limit)
}
