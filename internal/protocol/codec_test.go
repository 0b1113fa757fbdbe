package protocol_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"maelstrom-counter/go-node/internal/protocol"

	"github.com/stretchr/testify/require"
)

func TestInitReplyMatchesWireScenario(t *testing.T) {
	req, err := protocol.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"init","node_id":"n1","node_ids":["n1"],"msg_id":1}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.Init{NodeID: "n1", NodeIDs: []string{"n1"}}, req.Body.Payload)

	line, err := protocol.Encode(protocol.Reply(req, protocol.InitOK{}))
	require.NoError(t, err)
	require.Equal(t, `{"src":"n1","dest":"c1","body":{"type":"init_ok","in_reply_to":1}}`, string(line))
}

func TestAddAndReadRepliesMatchWireScenario(t *testing.T) {
	add, err := protocol.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"add","delta":5,"msg_id":2}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.Add{Delta: 5}, add.Body.Payload)

	line, err := protocol.Encode(protocol.Reply(add, protocol.AddOK{}))
	require.NoError(t, err)
	require.Equal(t, `{"src":"n1","dest":"c1","body":{"type":"add_ok","in_reply_to":2}}`, string(line))

	read, err := protocol.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"read","msg_id":3}}`))
	require.NoError(t, err)
	line, err = protocol.Encode(protocol.Reply(read, protocol.ReadOK{Value: 5}))
	require.NoError(t, err)
	require.Equal(t, `{"src":"n1","dest":"c1","body":{"type":"read_ok","value":5,"in_reply_to":3}}`, string(line))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	envelopes := []protocol.Envelope{
		protocol.NewMessage("c1", "n1", protocol.Init{NodeID: "n1", NodeIDs: []string{"n1", "n2", "n3"}}).WithMsgID(1),
		protocol.NewMessage("c1", "n1", protocol.Init{NodeID: "n1"}).WithMsgID(2),
		protocol.NewMessage("c2", "n2", protocol.Add{Delta: -42}).WithMsgID(7),
		protocol.NewMessage("c2", "n2", protocol.Read{}),
		{Src: "n1", Dest: "c1", Body: protocol.Body{InReplyTo: protocol.ID(9), Payload: protocol.ReadOK{Value: 1 << 40}}},
		{Src: "n1", Dest: "c1", Body: protocol.Body{InReplyTo: protocol.ID(3), Payload: protocol.Error{Code: protocol.CodeNotSupported, Text: "line\nbreak \"quoted\""}}},
	}
	for _, want := range envelopes {
		line, err := protocol.Encode(want)
		require.NoError(t, err)
		require.NotContains(t, string(line), "\n")

		got, err := protocol.Decode(line)
		require.NoError(t, err, "line=%s", line)
		require.Equal(t, want, got)
	}
}

func TestEncodeOmitsAbsentCorrelationIDs(t *testing.T) {
	line, err := protocol.Encode(protocol.NewMessage("n1", "n2", protocol.Read{}))
	require.NoError(t, err)
	require.Equal(t, `{"src":"n1","dest":"n2","body":{"type":"read"}}`, string(line))
	require.NotContains(t, string(line), "null")

	got, err := protocol.Decode(line)
	require.NoError(t, err)
	require.Nil(t, got.Body.MsgID)
	require.Nil(t, got.Body.InReplyTo)
}

func TestEncodeNilPayload(t *testing.T) {
	_, err := protocol.Encode(protocol.Envelope{Src: "n1", Dest: "c1"})
	var encErr *protocol.EncodeError
	require.ErrorAs(t, err, &encErr)
	require.ErrorIs(t, err, protocol.ErrNilPayload)
}

func TestReplySwapsAddressesAndPropagatesAbsentMsgID(t *testing.T) {
	req := protocol.NewMessage("c7", "n3", protocol.Read{})
	resp := protocol.Reply(req, protocol.ReadOK{Value: 4})
	require.Equal(t, "n3", resp.Src)
	require.Equal(t, "c7", resp.Dest)
	require.Nil(t, resp.Body.InReplyTo)
	require.Nil(t, resp.Body.MsgID)

	req = req.WithMsgID(11)
	resp = protocol.Reply(req, protocol.ReadOK{Value: 4})
	require.Equal(t, int64(11), *resp.Body.InReplyTo)
	require.Nil(t, resp.Body.MsgID)
	require.NotSame(t, req.Body.MsgID, resp.Body.InReplyTo)
}

func TestDecodeRejectsMalformedLines(t *testing.T) {
	cases := map[string]struct {
		line string
		want error
	}{
		"not json":         {line: `hello world`},
		"empty":            {line: "   ", want: protocol.ErrEmptyLine},
		"trailing garbage": {line: `{"src":"c1","dest":"n1","body":{"type":"read"}} extra`},
		"missing src":      {line: `{"dest":"n1","body":{"type":"read"}}`, want: protocol.ErrMissingField},
		"missing body":     {line: `{"src":"c1","dest":"n1"}`, want: protocol.ErrMissingField},
		"null body":        {line: `{"src":"c1","dest":"n1","body":null}`, want: protocol.ErrMissingField},
		"body not object":  {line: `{"src":"c1","dest":"n1","body":[1,2]}`},
		"missing type":     {line: `{"src":"c1","dest":"n1","body":{"msg_id":1}}`, want: protocol.ErrMissingField},
		"missing delta":    {line: `{"src":"c1","dest":"n1","body":{"type":"add","msg_id":1}}`, want: protocol.ErrMissingField},
		"string delta":     {line: `{"src":"c1","dest":"n1","body":{"type":"add","delta":"5"}}`},
		"fractional id":    {line: `{"src":"c1","dest":"n1","body":{"type":"read","msg_id":1.5}}`},
		"missing node_ids": {line: `{"src":"c1","dest":"n1","body":{"type":"init","node_id":"n1"}}`, want: protocol.ErrMissingField},
		"missing text":     {line: `{"src":"n2","dest":"n1","body":{"type":"error","code":11}}`, want: protocol.ErrMissingField},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := protocol.Decode([]byte(tc.line))
			var decErr *protocol.DecodeError
			require.ErrorAs(t, err, &decErr)
			require.False(t, protocol.IsUnknownType(err))
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestDecodeUnknownTypeKeepsRouting(t *testing.T) {
	env, err := protocol.Decode([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","echo":"hi","msg_id":4}}`))
	require.True(t, protocol.IsUnknownType(err))

	var decErr *protocol.DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, "echo", decErr.Type)
	require.Equal(t, "c1", env.Src)
	require.Equal(t, "n1", env.Dest)
	require.Equal(t, int64(4), *env.Body.MsgID)
	require.Nil(t, env.Body.Payload)
}

func TestDecodeErrorClipsLongLines(t *testing.T) {
	_, err := protocol.Decode([]byte(strings.Repeat("x", 4096)))
	var decErr *protocol.DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Less(t, len(decErr.Line), 4096)
	require.Contains(t, decErr.Line, "bytes)")
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	env, err := protocol.Decode([]byte(`{"id":3,"src":"c1","dest":"n1","body":{"type":"add","delta":2,"trace":"abc"}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.Add{Delta: 2}, env.Body.Payload)
}

func TestIDGeneratorIsMonotonicAndUnique(t *testing.T) {
	var gen protocol.IDGenerator
	require.Equal(t, int64(1), gen.Next())

	const workers, perWorker = 8, 250
	seen := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				seen <- gen.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]struct{}, workers*perWorker)
	for id := range seen {
		require.Greater(t, id, int64(1))
		unique[id] = struct{}{}
	}
	require.Len(t, unique, workers*perWorker)
	require.Equal(t, int64(workers*perWorker+2), gen.Next())
}

func TestErrorCodeClassification(t *testing.T) {
	require.Equal(t, "temporarily-unavailable", protocol.CodeTemporarilyUnavailable.String())
	require.Equal(t, "code-1001", protocol.ErrorCode(1001).String())
	require.True(t, protocol.CodeNotSupported.Definite())
	require.False(t, protocol.CodeTimeout.Definite())
	require.False(t, protocol.CodeCrash.Definite())
	require.False(t, protocol.ErrorCode(1001).Definite())

	rpcErr := &protocol.RPCError{Code: protocol.CodeAbort, Text: "conflict"}
	require.True(t, rpcErr.Definite())
	require.Equal(t, "rpc error 14 (abort): conflict", rpcErr.Error())
}

func TestIsResponse(t *testing.T) {
	require.False(t, protocol.IsResponse(protocol.Init{}))
	require.False(t, protocol.IsResponse(protocol.Add{}))
	require.False(t, protocol.IsResponse(protocol.Read{}))
	require.True(t, protocol.IsResponse(protocol.InitOK{}))
	require.True(t, protocol.IsResponse(protocol.ReadOK{}))
	require.True(t, protocol.IsResponse(protocol.Error{}))
}
