package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
)

const (
	defaultPollInitial = 500 * time.Millisecond
	defaultPollCeiling = 5 * time.Second
)

// Client is the API surface a session consumes: one streaming connection
// attempt plus status polls.
type Client interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
	Stream(ctx context.Context, req apiclient.Request) (io.ReadCloser, error)
}

// RequestBuilder derives the request for one operation id.
type RequestBuilder func(operationID string) apiclient.Request

// Option configures a Session.
type Option func(*Session)

// WithPollIntervals overrides the fallback polling schedule.
func WithPollIntervals(initial, ceiling time.Duration) Option {
	return func(s *Session) {
		s.pollInitial = initial
		s.pollCeiling = ceiling
	}
}

// Session observes long-running server-side operations. It prefers the push
// stream and falls back to status polling when the stream cannot be
// established or drops before a terminal event; consumers never see which
// transport is active.
type Session struct {
	client      Client
	streamReq   RequestBuilder
	statusReq   RequestBuilder
	pollInitial time.Duration
	pollCeiling time.Duration
}

// NewSession creates a Session over the given client. streamReq builds the
// push-stream request for an operation, statusReq the poll request.
func NewSession(client Client, streamReq, statusReq RequestBuilder, opts ...Option) *Session {
	s := &Session{
		client:      client,
		streamReq:   streamReq,
		statusReq:   statusReq,
		pollInitial: defaultPollInitial,
		pollCeiling: defaultPollCeiling,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts observing the operation and returns its event channel. The
// channel delivers events in arrival order, ends with exactly one Completed
// or Failed event, and is closed afterwards. Cancelling ctx closes the
// channel without a terminal event.
func (s *Session) Open(ctx context.Context, operationID string) (<-chan Event, error) {
	if operationID == "" {
		return nil, errors.New("operation id cannot be empty")
	}

	ch := make(chan Event, 8)
	p := &producer{
		session:     s,
		operationID: operationID,
		out:         ch,
		lastPercent: -1,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.run(gctx)
	})
	go func() {
		if err := g.Wait(); err != nil {
			slog.DebugContext(ctx, "stream producer stopped", "operation_id", operationID, "error", err)
		}
		close(ch)
	}()

	return ch, nil
}

// producer drives one operation's event channel across both transports.
type producer struct {
	session     *Session
	operationID string
	out         chan<- Event

	lastKind    Kind
	lastPercent int
}

func (p *producer) run(ctx context.Context) error {
	rc, err := p.session.client.Stream(ctx, p.session.streamReq(p.operationID))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.DebugContext(ctx, "push stream unavailable, polling instead",
			"operation_id", p.operationID, "error", err)
		return p.poll(ctx)
	}

	done, err := p.consumeStream(ctx, rc)
	if done || err != nil {
		return err
	}
	// Stream dropped before a terminal event: resume the same operation by
	// polling, deduplicating against what the stream already delivered.
	slog.DebugContext(ctx, "push stream dropped, polling instead", "operation_id", p.operationID)
	return p.poll(ctx)
}

// consumeStream reads push frames until a terminal event, a malformed frame,
// or a transport drop. done is true when no fallback is needed.
func (p *producer) consumeStream(ctx context.Context, rc io.ReadCloser) (done bool, err error) {
	defer func() { _ = rc.Close() }()

	dec := newSSEDecoder(rc)
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return false, nil
		}

		var we wireEvent
		if err := json.Unmarshal(frame.data, &we); err != nil {
			// Malformed payloads are a protocol failure, not a transport one:
			// the operation is reported failed rather than silently re-polled.
			p.emit(ctx, Event{
				Kind:   KindFailed,
				Reason: fmt.Sprintf("malformed stream event: %v", err),
			})
			return true, nil
		}

		ev, terr := translate(&we)
		if terr != nil {
			p.emit(ctx, Event{Kind: KindFailed, Reason: terr.Error()})
			return true, nil
		}
		if !p.emit(ctx, ev) {
			return true, nil
		}
		if ev.Terminal() {
			return true, nil
		}
	}
}

// poll drives the status endpoint at an increasing interval, translating
// state transitions into events and skipping unchanged observations.
func (p *producer) poll(ctx context.Context) error {
	interval := p.session.pollInitial

	for {
		var we wireEvent
		err := p.session.client.Do(ctx, p.session.statusReq(p.operationID), &we)
		switch {
		case err == nil:
			ev, terr := translate(&we)
			if terr != nil {
				p.emit(ctx, Event{Kind: KindFailed, Reason: terr.Error()})
				return nil
			}
			if p.changed(ev) && !p.emit(ctx, ev) {
				return nil
			}
			if ev.Terminal() {
				return nil
			}

		case ctx.Err() != nil:
			return nil

		default:
			p.emit(ctx, Event{
				Kind:   KindFailed,
				Reason: fmt.Sprintf("checking operation status: %v", err),
			})
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		interval = min(interval*3/2, p.session.pollCeiling)
	}
}

// changed reports whether the observation differs from the last emitted one.
// Poll responses repeat the current state, so unchanged observations are
// dropped to keep push and poll sequences identical.
func (p *producer) changed(ev Event) bool {
	if ev.Terminal() || ev.Kind == KindPartial {
		return true
	}
	return ev.Kind != p.lastKind || ev.Percent != p.lastPercent
}

// emit delivers one event unless ctx is cancelled first.
func (p *producer) emit(ctx context.Context, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case p.out <- ev:
		p.lastKind = ev.Kind
		p.lastPercent = ev.Percent
		return true
	}
}
