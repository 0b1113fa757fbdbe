package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

type wireEnvelope struct {
	Src  *string         `json:"src"`
	Dest *string         `json:"dest"`
	Body json.RawMessage `json:"body"`
}

type wireHeader struct {
	Type      *string `json:"type"`
	MsgID     *int64  `json:"msg_id"`
	InReplyTo *int64  `json:"in_reply_to"`
}

var payloadDecoders = map[string]func(json.RawMessage) (Payload, error){
	TypeInit:   decodeInit,
	TypeAdd:    decodeAdd,
	TypeRead:   func(json.RawMessage) (Payload, error) { return Read{}, nil },
	TypeInitOK: func(json.RawMessage) (Payload, error) { return InitOK{}, nil },
	TypeAddOK:  func(json.RawMessage) (Payload, error) { return AddOK{}, nil },
	TypeReadOK: decodeReadOK,
	TypeError:  decodeError,
}

// Decode parses a single wire line. Failures are *DecodeError.
//
// When the body type is not recognized the error matches ErrUnknownType and
// the returned envelope still carries src, dest and the correlation ids, with
// a nil payload, so the caller can decide whether to answer.
func Decode(line []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Envelope{}, newDecodeError(line, "", ErrEmptyLine)
	}

	var wire wireEnvelope
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Envelope{}, newDecodeError(line, "", err)
	}
	switch {
	case wire.Src == nil:
		return Envelope{}, newDecodeError(line, "", missingField("src"))
	case wire.Dest == nil:
		return Envelope{}, newDecodeError(line, "", missingField("dest"))
	case len(wire.Body) == 0 || bytes.Equal(wire.Body, []byte("null")):
		return Envelope{}, newDecodeError(line, "", missingField("body"))
	}

	var head wireHeader
	if err := json.Unmarshal(wire.Body, &head); err != nil {
		return Envelope{}, newDecodeError(line, "", err)
	}
	if head.Type == nil || *head.Type == "" {
		return Envelope{}, newDecodeError(line, "", missingField("type"))
	}
	typ := *head.Type

	env := Envelope{
		Src:  *wire.Src,
		Dest: *wire.Dest,
		Body: Body{MsgID: head.MsgID, InReplyTo: head.InReplyTo},
	}

	decode, ok := payloadDecoders[typ]
	if !ok {
		return env, newDecodeError(line, typ, ErrUnknownType)
	}
	p, err := decode(wire.Body)
	if err != nil {
		return Envelope{}, newDecodeError(line, typ, err)
	}
	env.Body.Payload = p
	return env, nil
}

// IsUnknownType reports whether err came from a body type this package does
// not model.
func IsUnknownType(err error) bool {
	return errors.Is(err, ErrUnknownType)
}

func decodeInit(raw json.RawMessage) (Payload, error) {
	var w struct {
		NodeID  *string   `json:"node_id"`
		NodeIDs *[]string `json:"node_ids"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.NodeID == nil {
		return nil, missingField("node_id")
	}
	if w.NodeIDs == nil {
		return nil, missingField("node_ids")
	}
	ids := *w.NodeIDs
	if len(ids) == 0 {
		ids = nil
	}
	return Init{NodeID: *w.NodeID, NodeIDs: ids}, nil
}

func decodeAdd(raw json.RawMessage) (Payload, error) {
	var w struct {
		Delta *int64 `json:"delta"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Delta == nil {
		return nil, missingField("delta")
	}
	return Add{Delta: *w.Delta}, nil
}

func decodeReadOK(raw json.RawMessage) (Payload, error) {
	var w struct {
		Value *int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Value == nil {
		return nil, missingField("value")
	}
	return ReadOK{Value: *w.Value}, nil
}

func decodeError(raw json.RawMessage) (Payload, error) {
	var w struct {
		Code *ErrorCode `json:"code"`
		Text *string    `json:"text"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Code == nil {
		return nil, missingField("code")
	}
	if w.Text == nil {
		return nil, missingField("text")
	}
	return Error{Code: *w.Code, Text: *w.Text}, nil
}
