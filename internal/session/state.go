package session

import "maelstrom-counter/go-node/internal/protocol"

// NodeState is everything a node remembers. It lives for the whole process
// and is never persisted.
type NodeState struct {
	ID          string
	NodeIDs     []string
	Counter     int64
	Initialized bool
}

func (s NodeState) clone() NodeState {
	if s.NodeIDs != nil {
		s.NodeIDs = append([]string(nil), s.NodeIDs...)
	}
	return s
}

// Dispatch applies one payload to state and returns the new state plus the
// reply payload, or nil when the payload gets no reply. It has no side
// effects; the counter wraps on int64 overflow.
func Dispatch(state NodeState, p protocol.Payload) (NodeState, protocol.Payload) {
	switch body := p.(type) {
	case protocol.Init:
		state.ID = body.NodeID
		state.NodeIDs = append([]string(nil), body.NodeIDs...)
		state.Initialized = true
		return state, protocol.InitOK{}
	case protocol.Add:
		state.Counter += body.Delta
		return state, protocol.AddOK{}
	case protocol.Read:
		return state, protocol.ReadOK{Value: state.Counter}
	case protocol.InitOK, protocol.AddOK, protocol.ReadOK, protocol.Error:
		return state, nil
	default:
		return state, nil
	}
}
