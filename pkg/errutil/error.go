package errutil

import (
	"errors"
	"net/http"
)

type ErrCode uint32

const (
	CodeOK ErrCode = iota
	CodeBadRequest
	CodeNotFound
	CodeConfig
	CodeProvider
	CodeInternal
)

type Error struct {
	Code ErrCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// BadRequestError marks invalid caller input. Never retried.
func BadRequestError(err error) *Error {
	return newError(CodeBadRequest, err)
}

// ValidationError is an alias kept for form-validation call sites.
func ValidationError(err error) *Error {
	return BadRequestError(err)
}

func NotFoundError(err error) *Error {
	return newError(CodeNotFound, err)
}

// ConfigError marks a missing or unusable configuration, surfaced at the
// point a send-path operation is attempted.
func ConfigError(err error) *Error {
	return newError(CodeConfig, err)
}

// ProviderError wraps a network or non-2xx failure from the delivery provider.
func ProviderError(err error) *Error {
	return newError(CodeProvider, err)
}

func InternalError(err error) *Error {
	return newError(CodeInternal, err)
}

func IsBadRequest(err error) bool {
	return hasCode(err, CodeBadRequest)
}

func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func IsConfigError(err error) bool {
	return hasCode(err, CodeConfig)
}

func IsProviderError(err error) bool {
	return hasCode(err, CodeProvider)
}

func hasCode(err error, code ErrCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ParseHttpError maps an error to an HTTP status code and message.
func ParseHttpError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case CodeBadRequest, CodeConfig:
			return http.StatusBadRequest, e.Error()
		case CodeNotFound:
			return http.StatusNotFound, e.Error()
		case CodeProvider:
			return http.StatusBadGateway, e.Error()
		}
	}

	return http.StatusInternalServerError, err.Error()
}
