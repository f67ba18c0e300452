package paramcontainer

import "fmt"

// ParseError is returned by Update when the supplied bytes are not valid
// JSON. Offset is the byte offset reported by encoding/json where the
// parse failed.
type ParseError struct {
	Offset int64
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("paramcontainer: parse error at byte %d: %s", e.Offset, e.Reason)
}

// TypeMismatch is returned when a JSON value at a bound path cannot be
// coerced to the type the path is bound to.
type TypeMismatch struct {
	Path   string
	Reason string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("paramcontainer: type mismatch at %q: %s", e.Path, e.Reason)
}

// DuplicatePath is raised by the Bind* methods when a path is registered
// twice in the same container. Per spec this is a programming error, so
// Bind* panics with this type rather than returning an error.
type DuplicatePath struct {
	Path string
}

func (e *DuplicatePath) Error() string {
	return fmt.Sprintf("paramcontainer: path %q already bound", e.Path)
}
