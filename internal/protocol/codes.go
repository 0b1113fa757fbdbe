package protocol

import "strconv"

// ErrorCode is the numeric code carried by an error body.
type ErrorCode int

const (
	CodeTimeout                ErrorCode = 0
	CodeNodeNotFound           ErrorCode = 1
	CodeNotSupported           ErrorCode = 10
	CodeTemporarilyUnavailable ErrorCode = 11
	CodeMalformedRequest       ErrorCode = 12
	CodeCrash                  ErrorCode = 13
	CodeAbort                  ErrorCode = 14
	CodeKeyDoesNotExist        ErrorCode = 20
	CodeKeyAlreadyExists       ErrorCode = 21
	CodePreconditionFailed     ErrorCode = 22
	CodeTxnConflict            ErrorCode = 30
)

var codeNames = map[ErrorCode]string{
	CodeTimeout:                "timeout",
	CodeNodeNotFound:           "node-not-found",
	CodeNotSupported:           "not-supported",
	CodeTemporarilyUnavailable: "temporarily-unavailable",
	CodeMalformedRequest:       "malformed-request",
	CodeCrash:                  "crash",
	CodeAbort:                  "abort",
	CodeKeyDoesNotExist:        "key-does-not-exist",
	CodeKeyAlreadyExists:       "key-already-exists",
	CodePreconditionFailed:     "precondition-failed",
	CodeTxnConflict:            "txn-conflict",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "code-" + strconv.Itoa(int(c))
}

// Definite reports whether an error with this code guarantees the request had
// no effect. Timeouts, crashes and unrecognized codes are indefinite.
func (c ErrorCode) Definite() bool {
	switch c {
	case CodeTimeout, CodeCrash:
		return false
	}
	_, known := codeNames[c]
	return known
}
