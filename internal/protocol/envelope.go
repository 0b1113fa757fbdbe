package protocol

// Envelope is one wire message. Values are treated as immutable; helpers
// return modified copies.
type Envelope struct {
	Src  string
	Dest string
	Body Body
}

// Body carries the payload plus the optional correlation ids. A nil id is
// absent on the wire.
type Body struct {
	MsgID     *int64
	InReplyTo *int64
	Payload   Payload
}

// Type returns the wire discriminant of the payload, or "" when unset.
func (b Body) Type() string {
	if b.Payload == nil {
		return ""
	}
	return b.Payload.Type()
}

// ID returns a pointer to a copy of v for use as msg_id or in_reply_to.
func ID(v int64) *int64 {
	return &v
}

// NewMessage builds an originated envelope without correlation ids.
func NewMessage(src, dest string, p Payload) Envelope {
	return Envelope{Src: src, Dest: dest, Body: Body{Payload: p}}
}

// WithMsgID returns a copy of e carrying msg_id id.
func (e Envelope) WithMsgID(id int64) Envelope {
	e.Body.MsgID = ID(id)
	return e
}

// Reply addresses p back to the sender of req. in_reply_to copies req's
// msg_id (absent stays absent) and the reply carries no msg_id of its own.
func Reply(req Envelope, p Payload) Envelope {
	var inReplyTo *int64
	if req.Body.MsgID != nil {
		inReplyTo = ID(*req.Body.MsgID)
	}
	return Envelope{
		Src:  req.Dest,
		Dest: req.Src,
		Body: Body{
			InReplyTo: inReplyTo,
			Payload:   p,
		},
	}
}
