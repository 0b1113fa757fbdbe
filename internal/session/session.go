// Package session runs one node over a line stream.
//
// Responsibilities:
//   - read lines, decode them, apply them to NodeState and write replies
//   - apply the decode error, unknown type, init and rate limit policies
//   - correlate outbound requests with their replies
//
// Non-responsibilities:
//   - wire encoding (internal/protocol)
//   - framing and output serialization (internal/linestream)
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"maelstrom-counter/go-node/internal/linestream"
	"maelstrom-counter/go-node/internal/platform/logging"
	"maelstrom-counter/go-node/internal/protocol"
)

var (
	ErrSessionClosed  = errors.New("session: closed")
	ErrAlreadyRunning = errors.New("session: already running")
	ErrNotInitialized = errors.New("session: node not initialized")
)

const DefaultMaxReadErrors = 16

// Drop reasons reported to the Observer.
const (
	DropLineTooLong    = "line_too_long"
	DropMalformed      = "malformed"
	DropUnknownType    = "unknown_type"
	DropUnsolicited    = "unsolicited_response"
	DropRateLimited    = "rate_limited"
	DropNotInitialized = "not_initialized"
	DropNoReply        = "no_reply"
)

// LineSource yields inbound lines. Next returns io.EOF when input ends.
type LineSource interface {
	Next() ([]byte, error)
}

// LineSink writes one complete outbound line. Implementations must be safe
// for concurrent use.
type LineSink interface {
	WriteLine(line []byte) error
}

// Limiter admits or rejects a request from src.
type Limiter interface {
	Allow(src string, now time.Time) bool
}

// Observer receives traffic events. metrics.Collector implements it.
type Observer interface {
	Received(msgType string)
	Sent(msgType string)
	Dropped(reason string)
	DecodeFailed()
}

type noopObserver struct{}

func (noopObserver) Received(string) {}
func (noopObserver) Sent(string)     {}
func (noopObserver) Dropped(string)  {}
func (noopObserver) DecodeFailed()   {}

type Options struct {
	OnDecodeError DecodeErrorPolicy
	OnUnknownType UnknownTypePolicy
	RequireInit   bool
	// MaxReadErrors bounds consecutive read failures before Run gives up.
	MaxReadErrors int
	// CallTimeout applies to Call when its context has no deadline. Zero
	// waits indefinitely.
	CallTimeout time.Duration
	Limiter     Limiter
	Observer    Observer
	Logger      *slog.Logger
	Now         func() time.Time
}

type Session struct {
	sink     LineSink
	opts     Options
	log      *slog.Logger
	observer Observer

	mu    sync.Mutex
	state NodeState

	ids     protocol.IDGenerator
	pending *pendingCalls
	started atomic.Bool
}

func New(sink LineSink, opts Options) *Session {
	if opts.OnDecodeError == "" {
		opts.OnDecodeError = DecodeErrorSkip
	}
	if opts.OnUnknownType == "" {
		opts.OnUnknownType = UnknownTypeIgnore
	}
	if opts.MaxReadErrors <= 0 {
		opts.MaxReadErrors = DefaultMaxReadErrors
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	var observer Observer = noopObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}
	return &Session{
		sink:     sink,
		opts:     opts,
		log:      log,
		observer: observer,
		pending:  newPendingCalls(),
	}
}

// State returns a copy of the current node state.
func (s *Session) State() NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

type readResult struct {
	line []byte
	err  error
}

// Run serves src until it is exhausted (nil), ctx ends (ctx.Err()), a reply
// cannot be written, the input keeps failing, or a malformed line arrives
// under DecodeErrorAbort. A session runs at most once; outstanding calls
// fail with ErrSessionClosed when Run returns.
func (s *Session) Run(ctx context.Context, src LineSource) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.pending.close()

	lines := make(chan readResult)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			line, err := src.Next()
			select {
			case lines <- readResult{line: line, err: err}:
			case <-stop:
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
		}
	}()

	readErrors := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-lines:
			switch {
			case res.err == nil:
				readErrors = 0
				if err := s.handleLine(res.line); err != nil {
					return err
				}
			case errors.Is(res.err, io.EOF):
				s.log.Debug("input closed")
				return nil
			case errors.Is(res.err, linestream.ErrLineTooLong):
				readErrors = 0
				s.observer.Dropped(DropLineTooLong)
				s.log.Warn("dropping oversized line", "error", res.err)
			default:
				readErrors++
				s.log.Warn("read failed", "error", res.err, "consecutive", readErrors)
				if readErrors >= s.opts.MaxReadErrors {
					if errors.Is(res.err, linestream.ErrReadFailed) {
						return res.err
					}
					return fmt.Errorf("%w: %w", linestream.ErrReadFailed, res.err)
				}
			}
		}
	}
}

// handleLine processes one inbound line. A non-nil error stops Run.
func (s *Session) handleLine(line []byte) error {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	env, err := protocol.Decode(line)
	if err != nil {
		if protocol.IsUnknownType(err) {
			return s.handleUnknown(env, err)
		}
		return s.handleDecodeError(err)
	}
	s.observer.Received(env.Body.Type())

	if protocol.IsResponse(env.Body.Payload) {
		s.handleResponse(env)
		return nil
	}
	if s.opts.Limiter != nil && !s.opts.Limiter.Allow(env.Src, s.opts.Now()) {
		s.observer.Dropped(DropRateLimited)
		s.log.Warn("rate limited", "src", env.Src, "type", env.Body.Type())
		return s.refuse(env, protocol.CodeTemporarilyUnavailable, "rate limit exceeded")
	}

	s.mu.Lock()
	if s.opts.RequireInit && !s.state.Initialized && env.Body.Type() != protocol.TypeInit {
		s.mu.Unlock()
		s.observer.Dropped(DropNotInitialized)
		return s.refuse(env, protocol.CodeTemporarilyUnavailable, "node not initialized")
	}
	next, reply := Dispatch(s.state, env.Body.Payload)
	s.state = next
	s.mu.Unlock()

	if init, ok := env.Body.Payload.(protocol.Init); ok {
		s.log.Info("node initialized", "node_id", init.NodeID, "cluster", len(init.NodeIDs))
	}
	if reply == nil {
		s.observer.Dropped(DropNoReply)
		return nil
	}
	return s.write(protocol.Reply(env, reply))
}

func (s *Session) handleDecodeError(err error) error {
	s.observer.DecodeFailed()
	s.observer.Dropped(DropMalformed)
	attrs := []any{"error", err}
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		attrs = append(attrs, "line", de.Line)
	}
	if s.opts.OnDecodeError == DecodeErrorAbort {
		s.log.Error("malformed line", attrs...)
		return fmt.Errorf("session: %w", err)
	}
	s.log.Warn("skipping malformed line", attrs...)
	return nil
}

func (s *Session) handleUnknown(env protocol.Envelope, err error) error {
	var typ string
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		typ = de.Type
	}
	s.observer.Dropped(DropUnknownType)
	s.log.Debug("unknown message type", "type", typ, "src", env.Src)
	if s.opts.OnUnknownType != UnknownTypeReject {
		return nil
	}
	return s.refuse(env, protocol.CodeNotSupported, fmt.Sprintf("unsupported message type %q", typ))
}

// refuse answers req with an error body. Requests without a msg_id get no
// answer since the sender could not correlate it.
func (s *Session) refuse(req protocol.Envelope, code protocol.ErrorCode, text string) error {
	if req.Body.MsgID == nil {
		return nil
	}
	return s.write(protocol.Reply(req, protocol.Error{Code: code, Text: text}))
}

func (s *Session) handleResponse(env protocol.Envelope) {
	if env.Body.InReplyTo != nil && s.pending.resolve(*env.Body.InReplyTo, env) {
		return
	}
	s.observer.Dropped(DropUnsolicited)
	if e, ok := env.Body.Payload.(protocol.Error); ok {
		s.log.Warn("error reply", "src", env.Src, "code", int(e.Code), "name", e.Code.String(), "text", e.Text)
		return
	}
	s.log.Debug("unmatched response", "src", env.Src, "type", env.Body.Type())
}

// write encodes env and hands it to the sink. Any failure is fatal to Run.
func (s *Session) write(env protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := s.sink.WriteLine(line); err != nil {
		if errors.Is(err, linestream.ErrWriteFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", linestream.ErrWriteFailed, err)
	}
	s.observer.Sent(env.Body.Type())
	return nil
}

// Send writes a request to dest without a msg_id. No reply is expected.
func (s *Session) Send(dest string, p protocol.Payload) error {
	self := s.selfID()
	if self == "" {
		return ErrNotInitialized
	}
	return s.write(protocol.NewMessage(self, dest, p))
}

// Call writes a request to dest and waits for the reply with the matching
// in_reply_to. An error body resolves the call with *protocol.RPCError and
// the reply envelope.
func (s *Session) Call(ctx context.Context, dest string, p protocol.Payload) (protocol.Envelope, error) {
	self := s.selfID()
	if self == "" {
		return protocol.Envelope{}, ErrNotInitialized
	}
	if _, ok := ctx.Deadline(); !ok && s.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()
	}

	id := s.ids.Next()
	replies, err := s.pending.register(id)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if err := s.write(protocol.NewMessage(self, dest, p).WithMsgID(id)); err != nil {
		s.pending.cancel(id)
		return protocol.Envelope{}, err
	}

	select {
	case env, ok := <-replies:
		if !ok {
			return protocol.Envelope{}, ErrSessionClosed
		}
		if e, isErr := env.Body.Payload.(protocol.Error); isErr {
			return env, &protocol.RPCError{Code: e.Code, Text: e.Text}
		}
		return env, nil
	case <-ctx.Done():
		s.pending.cancel(id)
		return protocol.Envelope{}, ctx.Err()
	}
}

func (s *Session) selfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}
