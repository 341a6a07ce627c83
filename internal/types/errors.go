package types

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential  = errors.New("no stored credential")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// HTTPError is a non-200, non-401 response from the usage endpoint.
type HTTPError struct {
	StatusCode int
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("usage fetch failed (HTTP %d)", e.StatusCode)
}

// DecodeError is a 200 response whose body failed structured decoding.
// The upstream schema is not contractually stable, so this shows up
// across server-side changes.
type DecodeError struct {
	Err error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode usage response: %v", e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure to read or write the persisted token record.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("token store %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}
