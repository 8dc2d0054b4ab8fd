package models

import (
	"errors"
	"fmt"
)

// ConfigError is raised before any request when a stream is misconfigured
type ConfigError struct {
	Stream  string
	Param   string
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Stream != "" && e.Param != "":
		return fmt.Sprintf("config error for /%s parameter '%s': %s", e.Stream, e.Param, e.Message)
	case e.Stream != "":
		return fmt.Sprintf("config error for /%s: %s", e.Stream, e.Message)
	case e.Param != "":
		return fmt.Sprintf("config error for '%s': %s", e.Param, e.Message)
	default:
		return fmt.Sprintf("config error: %s", e.Message)
	}
}

type FetchErrorKind string

const (
	// FetchClient is a 4xx response other than 429, never retried
	FetchClient FetchErrorKind = "client"
	// FetchTransient is a network failure, 5xx or 429 that outlived the retry budget
	FetchTransient FetchErrorKind = "transient"
	// FetchDecode is a 2xx response whose body is not a JSON object
	FetchDecode FetchErrorKind = "decode"
)

// FetchError is returned by the fetcher once a request has definitively failed
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Attempts   int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s error fetching %s after %d attempt(s)", e.Kind, e.URL, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += " " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DataError marks a malformed record; the syncer skips it rather than failing
type DataError struct {
	Stream  string
	Message string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in %s: %s", e.Stream, e.Message)
}

// IsFetchKind reports whether err wraps a FetchError of the given kind
func IsFetchKind(err error, kind FetchErrorKind) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == kind
}
