package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindAccessDenied  ErrorKind = "access-denied"
	KindNotFound      ErrorKind = "not-found"
	KindInvalid       ErrorKind = "invalid-request"
	KindRateLimit     ErrorKind = "rate-limit"
	KindServer        ErrorKind = "server"
	KindTimeout       ErrorKind = "timeout"
	KindNetwork       ErrorKind = "network"
	KindContextLength ErrorKind = "context-length"
	KindMalformed     ErrorKind = "malformed-response"
)

// TransportError is the single error category the agent loop sees for any
// model-transport failure. Retryable reports whether another attempt could
// succeed (rate limits, server errors, network blips).
type TransportError struct {
	Provider  string
	Kind      ErrorKind
	Retryable bool
	Message   string
	Cause     error
}

func (e *TransportError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a transport error worth retrying.
// Unknown errors default to retryable, matching provider SDK conventions.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}

// retryableKinds are the failure classes where a later attempt can succeed.
var retryableKinds = map[ErrorKind]bool{
	KindRateLimit: true,
	KindServer:    true,
	KindTimeout:   true,
	KindNetwork:   true,
}

// newTransportError builds a TransportError with Retryable derived from kind.
func newTransportError(provider string, kind ErrorKind, cause error) *TransportError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &TransportError{
		Provider:  provider,
		Kind:      kind,
		Retryable: retryableKinds[kind],
		Message:   msg,
		Cause:     cause,
	}
}

// classifyError maps a raw provider/gollm error onto the transport taxonomy.
// gollm surfaces provider failures as opaque strings, so classification is
// by message content.
func classifyError(provider string, err error) *TransportError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "401", "unauthorized", "invalid api key", "invalid key", "no api key"):
		return newTransportError(provider, KindAuth, err)
	case containsAny(msg, "403", "forbidden"):
		return newTransportError(provider, KindAccessDenied, err)
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return newTransportError(provider, KindRateLimit, err)
	case containsAny(msg, "context length", "context_length", "too many tokens", "maximum context"):
		return newTransportError(provider, KindContextLength, err)
	case containsAny(msg, "404", "model not found", "does not exist"):
		return newTransportError(provider, KindNotFound, err)
	case containsAny(msg, "timeout", "deadline exceeded"):
		return newTransportError(provider, KindTimeout, err)
	case containsAny(msg, "500", "502", "503", "504", "internal server", "overloaded", "service unavailable"):
		return newTransportError(provider, KindServer, err)
	case containsAny(msg, "connection refused", "connection reset", "no such host", "eof"):
		return newTransportError(provider, KindNetwork, err)
	case containsAny(msg, "400", "invalid request", "unsupported"):
		return newTransportError(provider, KindInvalid, err)
	default:
		// Unknown provider failures default to retryable server-side trouble.
		return newTransportError(provider, KindServer, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
