package corelog

import (
	"log/slog"

	"github.com/dmitrymomot/watchcore/message"
)

// Component tags a log line with the producing package, mirroring the
// teacher's core/logger/attr.go Component helper.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// ChannelID tags a log line with a channel identifier.
func ChannelID(id message.ChannelID) slog.Attr {
	return slog.Uint64("channel_id", uint64(id))
}

// CommandID tags a log line with a command identifier.
func CommandID(id message.CommandID) slog.Attr {
	return slog.Uint64("command_id", uint64(id))
}

// Action tags a log line with a Command action.
func Action(a message.Action) slog.Attr {
	return slog.String("action", a.String())
}

// Path tags a log line with a filesystem path.
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Err tags a log line with an error's message, or omits it if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// ThreadState tags a log line with a thread's current lifecycle state.
func ThreadState(s string) slog.Attr {
	return slog.String("thread_state", s)
}
