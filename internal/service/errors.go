package service

import (
	"errors"
	"strings"
)

var (
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrDownloadNotPermitted is partial authorization: the grant allows
	// viewing but its download flag is off.
	ErrDownloadNotPermitted = errors.New("the access grant does not permit downloading")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}
