package ocpp

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

var idGenerator = uuid.NewString

// CallOutcome is the terminal result of an outbound call.
type CallOutcome struct {
	Payload json.RawMessage
	Err     error
}

// PendingCall is a single-resolution slot for one outstanding outbound call.
type PendingCall struct {
	ID     string
	Action string
	done   chan CallOutcome
}

// Done delivers exactly one outcome.
func (p *PendingCall) Done() <-chan CallOutcome {
	return p.done
}

// PendingCalls correlates outbound calls with their responses by unique id.
// It is safe for concurrent use by the receive loop and any number of callers.
type PendingCalls struct {
	mu       sync.Mutex
	calls    map[string]*PendingCall
	closed   bool
	closeErr error
}

// NewPendingCalls returns an empty table.
func NewPendingCalls() *PendingCalls {
	return &PendingCalls{calls: make(map[string]*PendingCall)}
}

// Register allocates a slot under a unique id that is not outstanding.
func (t *PendingCalls) Register(action string) (*PendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, t.closeErr
	}

	id := idGenerator()
	for {
		if _, taken := t.calls[id]; !taken && id != "" {
			break
		}
		id = idGenerator()
	}

	call := &PendingCall{ID: id, Action: action, done: make(chan CallOutcome, 1)}
	t.calls[id] = call
	return call, nil
}

// Resolve completes the slot matching a CallResult or CallError. It reports
// false when no call with that id is outstanding.
func (t *PendingCalls) Resolve(msg *Message) (*PendingCall, bool) {
	call := t.take(msg.UniqueID)
	if call == nil {
		return nil, false
	}

	switch msg.Type {
	case MessageTypeCallResult:
		call.done <- CallOutcome{Payload: msg.Payload}
	case MessageTypeCallError:
		call.done <- CallOutcome{Err: &CallError{
			UniqueID:    msg.UniqueID,
			Code:        msg.ErrorCode,
			Description: msg.ErrorDescription,
			Details:     msg.ErrorDetails,
		}}
	default:
		call.done <- CallOutcome{Err: ErrMalformedEnvelope}
	}
	return call, true
}

// Fail completes a single slot with err.
func (t *PendingCalls) Fail(id string, err error) bool {
	call := t.take(id)
	if call == nil {
		return false
	}
	call.done <- CallOutcome{Err: err}
	return true
}

// Close fails every outstanding slot with err and rejects further registrations.
// It returns the number of slots failed.
func (t *PendingCalls) Close(err error) int {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	t.closed = true
	t.closeErr = err
	calls := t.calls
	t.calls = make(map[string]*PendingCall)
	t.mu.Unlock()

	for _, call := range calls {
		call.done <- CallOutcome{Err: err}
	}
	return len(calls)
}

// Len returns the number of outstanding calls.
func (t *PendingCalls) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *PendingCalls) take(id string) *PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	return call
}
