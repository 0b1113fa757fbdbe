package protocol

import "encoding/json"

const (
	TypeInit   = "init"
	TypeAdd    = "add"
	TypeRead   = "read"
	TypeInitOK = "init_ok"
	TypeAddOK  = "add_ok"
	TypeReadOK = "read_ok"
	TypeError  = "error"
)

// Payload is the closed set of body variants. The unexported method keeps
// implementations inside this package.
type Payload interface {
	Type() string
	payload()
}

// Init announces the node's id and the cluster. An empty node_ids array
// decodes as a nil NodeIDs.
type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

type Add struct {
	Delta int64 `json:"delta"`
}

type Read struct{}

type InitOK struct{}

type AddOK struct{}

type ReadOK struct {
	Value int64 `json:"value"`
}

type Error struct {
	Code ErrorCode `json:"code"`
	Text string    `json:"text"`
}

func (Init) Type() string   { return TypeInit }
func (Add) Type() string    { return TypeAdd }
func (Read) Type() string   { return TypeRead }
func (InitOK) Type() string { return TypeInitOK }
func (AddOK) Type() string  { return TypeAddOK }
func (ReadOK) Type() string { return TypeReadOK }
func (Error) Type() string  { return TypeError }

func (Init) payload()   {}
func (Add) payload()    {}
func (Read) payload()   {}
func (InitOK) payload() {}
func (AddOK) payload()  {}
func (ReadOK) payload() {}
func (Error) payload()  {}

// MarshalJSON keeps node_ids an array when the slice is nil so the field
// survives a decode.
func (p Init) MarshalJSON() ([]byte, error) {
	type plain Init
	if p.NodeIDs == nil {
		p.NodeIDs = []string{}
	}
	return json.Marshal(plain(p))
}

// IsResponse reports whether p answers a request rather than making one.
func IsResponse(p Payload) bool {
	switch p.(type) {
	case InitOK, AddOK, ReadOK, Error:
		return true
	default:
		return false
	}
}
