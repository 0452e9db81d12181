package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/message"
)

func TestIDGeneratorStartsAtOneAndIncrements(t *testing.T) {
	g := message.NewIDGenerator()

	first := g.Next()
	second := g.Next()

	require.EqualValues(t, 1, first, "0 is the null sentinel")
	require.EqualValues(t, 2, second)
}

func TestMessageAccessorsMatchTag(t *testing.T) {
	cmd := message.NewCommand(1, message.ActionAdd, 2, "/tmp/w", true)
	_, ok := cmd.AsCommand()
	require.True(t, ok, "expected AsCommand to succeed for a Command message")
	_, ok = cmd.AsAck()
	assert.False(t, ok)
	_, ok = cmd.AsEvent()
	assert.False(t, ok)
	_, ok = cmd.AsError()
	assert.False(t, ok)

	ack := message.NewAck(1, 2, true, "")
	ackPayload, ok := ack.AsAck()
	require.True(t, ok)
	assert.True(t, ackPayload.Success)

	ev := message.NewEvent(2, message.EventRenamed, message.KindFile, "/old", "/new")
	payload, ok := ev.AsEvent()
	require.True(t, ok)
	assert.Equal(t, "/old", payload.OldPath)
	assert.Equal(t, "/new", payload.Path)
	assert.NotEmpty(t, payload.TraceID)

	errMsg := message.NewError(2, "boom", true)
	errPayload, ok := errMsg.AsError()
	require.True(t, ok)
	assert.True(t, errPayload.Fatal)
}

func TestActionStringsMatchRecognizedCommandNames(t *testing.T) {
	cases := map[message.Action]string{
		message.ActionAdd:             "add",
		message.ActionRemove:          "remove",
		message.ActionLogFile:         "log_file",
		message.ActionLogStdout:       "log_stdout",
		message.ActionLogStderr:       "log_stderr",
		message.ActionLogDisable:      "log_disable",
		message.ActionPollingInterval: "polling_interval",
		message.ActionPollingThrottle: "polling_throttle",
		message.ActionDrain:           "drain",
	}
	for action, want := range cases {
		assert.Equal(t, want, action.String())
	}
}
