package streamclient

import (
	"encoding/json"
	"time"

	"github.com/MailerSuite/Final-sub009/errors"
)

// Event is one parsed inbound frame.
type Event struct {
	// Seq numbers events in arrival order across reconnects, starting at 1.
	Seq        uint64
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.WrapInvalid(errors.Join(errors.ErrParsingFailed, err), "streamclient", "Decode", "decode event")
	}
	return nil
}

// Handlers receives connection callbacks. All fields are optional. Callbacks
// run on the connection's goroutine, except that OnMessage also runs on the
// caller of Resume while buffered events are flushed; OnMessage is never
// invoked concurrently with itself.
type Handlers struct {
	OnOpen        func()
	OnMessage     func(Event)
	OnClose       func(code int, reason string)
	OnError       func(err error)
	OnStateChange func(from, to State)
}
