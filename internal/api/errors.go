package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/pipeline"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps an error to its HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, datagen.ErrConfiguration):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, pipeline.ErrInference):
		return http.StatusBadGateway, "inference_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
