package aws4

import "fmt"

type WrappedError struct {
	Cause error
}

func (e WrappedError) Unwrap() error { return e.Cause }

// ConfigurationError is returned when a signer configuration is missing a required
// field or combines fields that make no sense together. It is fatal for the request
// and must never be retried.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signer configuration: %s", e.Message)
}

// CanonicalizationError is returned when a request cannot be rendered into its
// canonical form, such as a header value containing an embedded CR or LF.
// It is security relevant and must not be downgraded to a warning.
type CanonicalizationError struct {
	Header  string
	Message string
}

func (e *CanonicalizationError) Error() string {
	if e.Header != "" {
		return fmt.Sprintf("canonicalization of header %q: %s", e.Header, e.Message)
	}
	return fmt.Sprintf("canonicalization: %s", e.Message)
}

// UnsignableBodyError is returned when a request body must be read again to compute
// a signature but the underlying stream cannot be replayed.
type UnsignableBodyError struct {
	WrappedError
}

func (e *UnsignableBodyError) Error() string {
	return fmt.Sprintf("body cannot be signed: %s", e.Cause)
}
