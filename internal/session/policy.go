package session

import (
	"fmt"
	"strings"
)

// DecodeErrorPolicy decides what a malformed inbound line does to the loop.
type DecodeErrorPolicy string

const (
	DecodeErrorSkip  DecodeErrorPolicy = "skip"
	DecodeErrorAbort DecodeErrorPolicy = "abort"
)

// UnknownTypePolicy decides how a well-formed line with an unmodelled body
// type is answered.
type UnknownTypePolicy string

const (
	UnknownTypeIgnore UnknownTypePolicy = "ignore"
	UnknownTypeReject UnknownTypePolicy = "reject"
)

func ParseDecodeErrorPolicy(raw string) (DecodeErrorPolicy, error) {
	switch p := DecodeErrorPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DecodeErrorSkip, nil
	case DecodeErrorSkip, DecodeErrorAbort:
		return p, nil
	default:
		return "", fmt.Errorf("session: unknown decode error policy %q", raw)
	}
}

func ParseUnknownTypePolicy(raw string) (UnknownTypePolicy, error) {
	switch p := UnknownTypePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return UnknownTypeIgnore, nil
	case UnknownTypeIgnore, UnknownTypeReject:
		return p, nil
	default:
		return "", fmt.Errorf("session: unknown unknown-type policy %q", raw)
	}
}
