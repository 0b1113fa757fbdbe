package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Encode renders env as one line without a trailing newline. Field order is
// src, dest, then body with type first, variant fields, msg_id and
// in_reply_to. Absent ids are omitted.
func Encode(env Envelope) ([]byte, error) {
	p := env.Body.Payload
	if p == nil {
		return nil, &EncodeError{Err: ErrNilPayload}
	}
	fields, err := json.Marshal(p)
	if err != nil {
		return nil, &EncodeError{Type: p.Type(), Err: err}
	}
	fields = bytes.TrimSpace(fields)
	if len(fields) < 2 || fields[0] != '{' || fields[len(fields)-1] != '}' {
		return nil, &EncodeError{Type: p.Type(), Err: errNotObject}
	}
	inner := bytes.TrimSpace(fields[1 : len(fields)-1])

	var buf bytes.Buffer
	buf.Grow(64 + len(inner))
	buf.WriteString(`{"src":`)
	writeString(&buf, env.Src)
	buf.WriteString(`,"dest":`)
	writeString(&buf, env.Dest)
	buf.WriteString(`,"body":{"type":`)
	writeString(&buf, p.Type())
	if len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	if env.Body.MsgID != nil {
		buf.WriteString(`,"msg_id":`)
		buf.WriteString(strconv.FormatInt(*env.Body.MsgID, 10))
	}
	if env.Body.InReplyTo != nil {
		buf.WriteString(`,"in_reply_to":`)
		buf.WriteString(strconv.FormatInt(*env.Body.InReplyTo, 10))
	}
	buf.WriteString(`}}`)

	out := buf.Bytes()
	if bytes.IndexByte(out, '\n') >= 0 {
		return nil, &EncodeError{Type: p.Type(), Err: ErrEmbeddedBreak}
	}
	return out, nil
}

func writeString(buf *bytes.Buffer, s string) {
	// json.Marshal on a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
