package adjust

import (
	"errors"
	"fmt"
)

// Error codes carried by EditError.
const (
	CodeInvalidInput    = "invalid_input"
	CodeInvalidCurve    = "invalid_curve"
	CodeInvalidGeometry = "invalid_geometry"
	CodeNotFound        = "not_found"
	CodeDuplicateID     = "duplicate_id"
)

// EditError reports an edit that was rejected. The edit state it was
// applied to is unchanged.
type EditError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e EditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e EditError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an EditError with the given code.
func IsCode(err error, code string) bool {
	var e EditError
	return errors.As(err, &e) && e.Code == code
}

func notFound(what, id string) error {
	return EditError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", what, id),
		Details: map[string]interface{}{
			"id": id,
		},
	}
}

func invalid(code, message string, err error) error {
	return EditError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
