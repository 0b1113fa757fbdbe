package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyLine     = errors.New("protocol: empty line")
	ErrUnknownType   = errors.New("protocol: unknown body type")
	ErrMissingField  = errors.New("protocol: missing required field")
	ErrNilPayload    = errors.New("protocol: nil payload")
	ErrEmbeddedBreak = errors.New("protocol: encoded line contains a newline")

	errNotObject = errors.New("protocol: payload must encode as a JSON object")
)

const maxErrorLineBytes = 256

// DecodeError reports a line that could not be turned into an Envelope.
// Type is set when the body discriminant was readable.
type DecodeError struct {
	Line string
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("protocol: decode %q: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("protocol: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(line []byte, typ string, err error) *DecodeError {
	return &DecodeError{Line: clip(string(line), maxErrorLineBytes), Type: typ, Err: err}
}

type EncodeError struct {
	Type string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("protocol: encode: %v", e.Err)
	}
	return fmt.Sprintf("protocol: encode %q: %v", e.Type, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// RPCError is an error body received in reply to an outbound request.
type RPCError struct {
	Code ErrorCode
	Text string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d (%s): %s", int(e.Code), e.Code, e.Text)
}

// Definite reports whether the failed operation is known not to have happened.
func (e *RPCError) Definite() bool { return e.Code.Definite() }

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("...(+%d bytes)", len(s)-n)
}
