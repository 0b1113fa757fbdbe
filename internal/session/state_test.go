package session

import (
	"math"
	"testing"

	"maelstrom-counter/go-node/internal/protocol"

	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	cases := []struct {
		name      string
		state     NodeState
		payload   protocol.Payload
		wantState NodeState
		wantReply protocol.Payload
	}{
		{
			name:      "init records identity",
			payload:   protocol.Init{NodeID: "n2", NodeIDs: []string{"n1", "n2"}},
			wantState: NodeState{ID: "n2", NodeIDs: []string{"n1", "n2"}, Initialized: true},
			wantReply: protocol.InitOK{},
		},
		{
			name:      "add accumulates",
			state:     NodeState{Counter: 10},
			payload:   protocol.Add{Delta: -3},
			wantState: NodeState{Counter: 7},
			wantReply: protocol.AddOK{},
		},
		{
			name:      "add wraps on overflow",
			state:     NodeState{Counter: math.MaxInt64},
			payload:   protocol.Add{Delta: 1},
			wantState: NodeState{Counter: math.MinInt64},
			wantReply: protocol.AddOK{},
		},
		{
			name:      "read reports counter",
			state:     NodeState{Counter: 12},
			payload:   protocol.Read{},
			wantState: NodeState{Counter: 12},
			wantReply: protocol.ReadOK{Value: 12},
		},
		{
			name:      "responses get no reply",
			state:     NodeState{Counter: 1},
			payload:   protocol.ReadOK{Value: 99},
			wantState: NodeState{Counter: 1},
		},
		{
			name:      "error bodies get no reply",
			payload:   protocol.Error{Code: protocol.CodeCrash, Text: "boom"},
			wantState: NodeState{},
		},
		{
			name:      "nil payload is ignored",
			state:     NodeState{Counter: 4},
			wantState: NodeState{Counter: 4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reply := Dispatch(tc.state, tc.payload)
			require.Equal(t, tc.wantState, got)
			require.Equal(t, tc.wantReply, reply)
		})
	}
}

func TestDispatchInitCopiesNodeIDs(t *testing.T) {
	ids := []string{"n1", "n2"}
	state, _ := Dispatch(NodeState{}, protocol.Init{NodeID: "n1", NodeIDs: ids})
	ids[0] = "mutated"
	require.Equal(t, []string{"n1", "n2"}, state.NodeIDs)

	snapshot := state.clone()
	snapshot.NodeIDs[1] = "mutated"
	require.Equal(t, "n2", state.NodeIDs[1])
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseDecodeErrorPolicy(" Abort ")
	require.NoError(t, err)
	require.Equal(t, DecodeErrorAbort, p)
	p, err = ParseDecodeErrorPolicy("")
	require.NoError(t, err)
	require.Equal(t, DecodeErrorSkip, p)
	_, err = ParseDecodeErrorPolicy("panic")
	require.Error(t, err)

	u, err := ParseUnknownTypePolicy("reject")
	require.NoError(t, err)
	require.Equal(t, UnknownTypeReject, u)
	u, err = ParseUnknownTypePolicy("")
	require.NoError(t, err)
	require.Equal(t, UnknownTypeIgnore, u)
	_, err = ParseUnknownTypePolicy("explode")
	require.Error(t, err)
}
