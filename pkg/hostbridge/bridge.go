// Package hostbridge routes host extension calls to dispatcher handlers and
// formats the replies. The cgo entry points in cmd/morespeeders are thin
// wrappers around Bridge.
package hostbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/morespeeders/extension/internal/dispatcher"
	"github.com/morespeeders/extension/internal/util"
)

// TimestampCommand is answered by the bridge itself.
const TimestampCommand = ":TIMESTAMP:"

// Bridge holds the version string and the dispatcher the host talks to.
type Bridge struct {
	mu         sync.RWMutex
	version    string
	dispatcher *dispatcher.Dispatcher
	now        func() time.Time
}

// New creates a bridge. The dispatcher may be set later.
func New(version string) *Bridge {
	return &Bridge{version: version, now: time.Now}
}

// SetDispatcher sets the event dispatcher for handling commands
func (b *Bridge) SetDispatcher(d *dispatcher.Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

// Dispatcher returns the configured dispatcher, or nil if not set
func (b *Bridge) Dispatcher() *dispatcher.Dispatcher {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dispatcher
}

// Version is returned when the host first loads the extension.
func (b *Bridge) Version() string {
	return b.version
}

// Call handles the single-string form "CMD" or "CMD|arg|arg". A handler
// registered for the full input wins over one registered for the command part.
func (b *Bridge) Call(input string) string {
	if input == TimestampCommand {
		return strconv.FormatInt(b.now().UTC().UnixNano(), 10)
	}

	d := b.Dispatcher()
	if d != nil && d.HasHandler(input) {
		return b.dispatch(d, input, nil)
	}

	command, args := util.SplitCommand(input)
	return b.CallArgs(command, args)
}

// CallArgs handles the command-plus-arguments form.
func (b *Bridge) CallArgs(command string, args []string) string {
	d := b.Dispatcher()
	if d == nil || !d.HasHandler(command) {
		return FormatResponse(nil, fmt.Errorf("%s: no handler registered", command))
	}
	return b.dispatch(d, command, util.UnquoteArgs(args))
}

func (b *Bridge) dispatch(d *dispatcher.Dispatcher, command string, args []string) string {
	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: b.now(),
	})
	return FormatResponse(result, err)
}

// FormatResponse renders a handler result as ["ok", <json>] or
// ["error", "<message>"]. A nil result renders as ["ok"].
func FormatResponse(result any, err error) string {
	if err != nil {
		msg, _ := json.Marshal(err.Error())
		return fmt.Sprintf(`["error",%s]`, msg)
	}
	if result == nil {
		return `["ok"]`
	}

	var payload []byte
	switch v := result.(type) {
	case json.RawMessage:
		payload = v
	default:
		p, merr := json.Marshal(v)
		if merr != nil {
			msg, _ := json.Marshal("unencodable result: " + merr.Error())
			return fmt.Sprintf(`["error",%s]`, msg)
		}
		payload = p
	}
	return fmt.Sprintf(`["ok",%s]`, payload)
}

// Truncate cuts a reply to fit the host's output buffer of size bytes,
// leaving room for the terminating NUL. The cut never splits a UTF-8 sequence.
func Truncate(reply string, size int) string {
	if size <= 0 {
		return ""
	}
	if len(reply) < size {
		return reply
	}
	end := size - 1
	for end > 0 && !utf8.RuneStart(reply[end]) {
		end--
	}
	return reply[:end]
}
