package segment

import (
	"errors"
	"net/http"
)

// Messages surfaced to HTTP clients.
const (
	MsgFieldsRequired  = "Image and coordinates are required"
	msgNoFile          = "No selected file"
	msgBadCoordinates  = "Invalid coordinates format"
	msgImageLoadFailed = "Image loading failed"
)

// validationError rejects a malformed request (400).
type validationError struct{ msg string }

func (e validationError) Error() string   { return e.msg }
func (e validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation constructs a validation error.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err rejects the request as malformed.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// unavailableError signals that the segmentation model cannot be loaded
// because its runtime is missing (503).
type unavailableError struct{ msg string }

func (e unavailableError) Error() string   { return e.msg }
func (e unavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsUnavailable reports whether err indicates a missing model runtime.
func IsUnavailable(err error) bool {
	var u unavailableError
	return errors.As(err, &u)
}
