package message

import "github.com/google/uuid"

// Tag identifies which payload variant a Message carries.
type Tag int

const (
	TagCommand Tag = iota
	TagAck
	TagEvent
	TagError
)

func (t Tag) String() string {
	switch t {
	case TagCommand:
		return "command"
	case TagAck:
		return "ack"
	case TagEvent:
		return "event"
	case TagError:
		return "error"
	default:
		return "unknown"
	}
}

// Command is a request addressed to a thread.
type Command struct {
	ID         CommandID
	Action     Action
	ChannelID  ChannelID
	RootPath   string
	Recursive  bool
	SplitCount int
	NumericArg int64
}

// Ack replies to a prior Command.
type Ack struct {
	OriginalCommandID CommandID
	ChannelID         ChannelID
	Success           bool
	Message           string
}

// Event is a single filesystem notification, normalized across backends.
// TraceID is a one-shot correlation identifier for log lines and
// downstream systems, not a protocol ID — unlike ChannelID/CommandID it is
// never looked up or compared, only logged and forwarded.
type Event struct {
	ChannelID ChannelID
	Action    EventAction
	Kind      Kind
	OldPath   string
	Path      string
	TraceID   string
}

// Error carries an out-of-band failure not tied to a specific Ack.
type Error struct {
	ChannelID ChannelID
	Message   string
	Fatal     bool
}

// Message is a move-only, closed tagged variant: exactly one of the
// payload fields is meaningful, selected by Tag. Keeping every variant as
// a plain field (rather than an interface) keeps the struct's layout flat
// so a single concrete type flows through the queue.
type Message struct {
	Tag     Tag
	Command Command
	Ack     Ack
	Event   Event
	Error   Error
}

// AsCommand returns the Command payload and true if Tag == TagCommand.
func (m Message) AsCommand() (Command, bool) {
	if m.Tag != TagCommand {
		return Command{}, false
	}
	return m.Command, true
}

// AsAck returns the Ack payload and true if Tag == TagAck.
func (m Message) AsAck() (Ack, bool) {
	if m.Tag != TagAck {
		return Ack{}, false
	}
	return m.Ack, true
}

// AsEvent returns the Event payload and true if Tag == TagEvent.
func (m Message) AsEvent() (Event, bool) {
	if m.Tag != TagEvent {
		return Event{}, false
	}
	return m.Event, true
}

// AsError returns the Error payload and true if Tag == TagError.
func (m Message) AsError() (Error, bool) {
	if m.Tag != TagError {
		return Error{}, false
	}
	return m.Error, true
}

// NewCommand builds a Command message. id is assigned last by the caller
// (typically the Hub, via IDGenerator) so a fresh id is allocated per send.
func NewCommand(id CommandID, action Action, channel ChannelID, root string, recursive bool) Message {
	return Message{
		Tag: TagCommand,
		Command: Command{
			ID:        id,
			Action:    action,
			ChannelID: channel,
			RootPath:  root,
			Recursive: recursive,
		},
	}
}

// NewAck builds an Ack message.
func NewAck(originalID CommandID, channel ChannelID, success bool, msg string) Message {
	return Message{
		Tag: TagAck,
		Ack: Ack{
			OriginalCommandID: originalID,
			ChannelID:         channel,
			Success:           success,
			Message:           msg,
		},
	}
}

// NewEvent builds a FilesystemEvent message.
func NewEvent(channel ChannelID, action EventAction, kind Kind, oldPath, path string) Message {
	return Message{
		Tag: TagEvent,
		Event: Event{
			ChannelID: channel,
			Action:    action,
			Kind:      kind,
			OldPath:   oldPath,
			Path:      path,
			TraceID:   uuid.New().String(),
		},
	}
}

// NewError builds an Error message.
func NewError(channel ChannelID, msg string, fatal bool) Message {
	return Message{
		Tag: TagError,
		Error: Error{
			ChannelID: channel,
			Message:   msg,
			Fatal:     fatal,
		},
	}
}
