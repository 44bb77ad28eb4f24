package state

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/starford/lattice/internal/models"
)

// ErrClosed is returned by Store methods after Close.
var ErrClosed = errors.New("state: store closed")

// Change is delivered to subscribers after every state replacement.
type Change struct {
	Seq   uint64
	Op    string
	Kinds []models.Kind
	State State
}

type dispatchReq struct {
	cmd  Command
	resp chan dispatchResp
}

type dispatchResp struct {
	state   State
	outcome Outcome
}

type historyReq struct {
	redo bool
	resp chan dispatchResp
}

// Store owns the current State.
//
// Concurrency model: a single internal loop goroutine holds the state and the
// undo/redo history. Public methods talk to it through channels, so writes
// are serialised and every subscriber observes whole snapshots in order.
type Store struct {
	historyLimit int

	dispatchCh    chan dispatchReq
	snapshotCh    chan chan State
	historyCh     chan historyReq
	subscribeCh   chan chan Change
	unsubscribeCh chan chan Change

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewStore starts a store seeded with initial. historyLimit bounds the undo
// stack; zero disables undo.
func NewStore(initial State, historyLimit int) *Store {
	if historyLimit < 0 {
		historyLimit = 0
	}
	s := &Store{
		historyLimit:  historyLimit,
		dispatchCh:    make(chan dispatchReq),
		snapshotCh:    make(chan chan State),
		historyCh:     make(chan historyReq),
		subscribeCh:   make(chan chan Change),
		unsubscribeCh: make(chan chan Change),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go s.run(initial)
	return s
}

func (s *Store) run(current State) {
	defer close(s.stopped)

	subscribers := make(map[chan Change]struct{})
	var seq uint64
	var past, future []State

	notify := func(op string, kinds []models.Kind) {
		seq++
		c := Change{Seq: seq, Op: op, Kinds: kinds, State: current}
		for ch := range subscribers {
			select {
			case ch <- c:
			default:
				// Subscriber is behind; it can always read Snapshot.
			}
		}
	}

	for {
		select {
		case <-s.stopCh:
			for ch := range subscribers {
				close(ch)
			}
			return

		case ch := <-s.subscribeCh:
			subscribers[ch] = struct{}{}

		case ch := <-s.unsubscribeCh:
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}

		case resp := <-s.snapshotCh:
			resp <- current

		case req := <-s.dispatchCh:
			next, out := Reduce(current, req.cmd)
			if out.Changed {
				if len(out.Kinds) > 0 && s.historyLimit > 0 {
					past = append(past, current)
					if len(past) > s.historyLimit {
						past = past[len(past)-s.historyLimit:]
					}
					future = nil
				}
				current = next
				notify(req.cmd.Op(), out.Kinds)
			}
			req.resp <- dispatchResp{state: current, outcome: out}

		case req := <-s.historyCh:
			from, to := &past, &future
			op := "undo"
			if req.redo {
				from, to = &future, &past
				op = "redo"
			}
			if len(*from) == 0 {
				req.resp <- dispatchResp{state: current}
				continue
			}
			restored := (*from)[len(*from)-1]
			*from = (*from)[:len(*from)-1]
			*to = append(*to, current)
			current = State{
				Folders:   restored.Folders,
				Items:     restored.Items,
				Selection: current.Selection,
			}.sanitizeSelection()
			notify(op, models.Kinds)
			req.resp <- dispatchResp{state: current, outcome: changed(models.Kinds...)}
		}
	}
}

// Dispatch applies cmd and returns the resulting state.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (State, Outcome, error) {
	if s.closed.Load() {
		return State{}, Outcome{}, ErrClosed
	}
	req := dispatchReq{cmd: cmd, resp: make(chan dispatchResp, 1)}
	select {
	case s.dispatchCh <- req:
	case <-s.stopped:
		return State{}, Outcome{}, ErrClosed
	case <-ctx.Done():
		return State{}, Outcome{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r.state, r.outcome, nil
	case <-s.stopped:
		return State{}, Outcome{}, ErrClosed
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot(ctx context.Context) (State, error) {
	if s.closed.Load() {
		return State{}, ErrClosed
	}
	resp := make(chan State, 1)
	select {
	case s.snapshotCh <- resp:
	case <-s.stopped:
		return State{}, ErrClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-s.stopped:
		return State{}, ErrClosed
	}
}

// Undo restores the entities as they were before the last tree-changing
// command. The selection is kept when it still points at something.
func (s *Store) Undo(ctx context.Context) (State, bool, error) {
	return s.history(ctx, false)
}

// Redo re-applies the last undone change.
func (s *Store) Redo(ctx context.Context) (State, bool, error) {
	return s.history(ctx, true)
}

func (s *Store) history(ctx context.Context, redo bool) (State, bool, error) {
	if s.closed.Load() {
		return State{}, false, ErrClosed
	}
	req := historyReq{redo: redo, resp: make(chan dispatchResp, 1)}
	select {
	case s.historyCh <- req:
	case <-s.stopped:
		return State{}, false, ErrClosed
	case <-ctx.Done():
		return State{}, false, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r.state, r.outcome.Changed, nil
	case <-s.stopped:
		return State{}, false, ErrClosed
	}
}

// Subscribe registers a listener. The channel is closed by Unsubscribe or
// Close.
func (s *Store) Subscribe() chan Change {
	ch := make(chan Change, 64)
	if s.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case s.subscribeCh <- ch:
	case <-s.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Store) Unsubscribe(ch chan Change) {
	if s.closed.Load() {
		return
	}
	select {
	case s.unsubscribeCh <- ch:
	case <-s.stopped:
	}
}

// Close stops the loop and closes every subscriber channel.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}
