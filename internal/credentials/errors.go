package credentials

import (
	"errors"
	"fmt"
)

// ErrMalformedFile is returned when a config or credentials file cannot be parsed.
var ErrMalformedFile = errors.New("malformed credentials file")

// FileError reports a credential file that could not be read or parsed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
