package worker

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
	"github.com/dmitrymomot/watchcore/thread"
)

// Worker is a Thread that owns an OS-specific Platform, grounded on
// original_source/src/worker/worker_thread.h's WorkerThread.
type Worker struct {
	*thread.Thread

	platform Platform
	registry *WatchRegistry
	logger   *corelog.Sink
}

// New constructs a Worker driving platform, wired to in/out queues.
// Extra thread.Options (e.g. WithShutdownTimeout, WithDeadLetterCapacity,
// sourced from config.Config by hub.New) are applied after the Worker's
// own required options.
func New(platform Platform, in, out *queue.Queue, logger *corelog.Sink, extra ...thread.Option) *Worker {
	w := &Worker{
		platform: platform,
		registry: NewWatchRegistry(),
		logger:   logger,
	}

	handlers := map[message.Action]thread.Handler{
		message.ActionAdd:    w.handleAdd,
		message.ActionRemove: w.handleRemove,
		message.ActionDrain:  w.handleDrain,
	}

	opts := append([]thread.Option{
		thread.WithHandlers(handlers),
		thread.WithOfflineHandler(w.offline),
		thread.WithBody(w.listen),
	}, extra...)
	w.Thread = thread.New("worker", in, out, logger, opts...)
	return w
}

func (w *Worker) offline(cmd message.Command) (message.Message, bool) {
	switch cmd.Action {
	case message.ActionLogFile, message.ActionLogStdout, message.ActionLogStderr, message.ActionLogDisable:
		applyLogCommand(w.logger, cmd)
		return message.NewAck(cmd.ID, cmd.ChannelID, true, ""), false
	default:
		return message.Message{}, true
	}
}

func applyLogCommand(logger *corelog.Sink, cmd message.Command) {
	switch cmd.Action {
	case message.ActionLogFile:
		_ = logger.ToFile(cmd.RootPath)
	case message.ActionLogStdout:
		logger.ToStdout()
	case message.ActionLogStderr:
		logger.ToStderr()
	case message.ActionLogDisable:
		logger.Disable()
	}
}

func (w *Worker) handleAdd(cmd message.Command) (thread.Outcome, message.Message) {
	ctx := context.Background()
	if err := w.platform.HandleAdd(ctx, w.OutQueue(), cmd.ChannelID, cmd.RootPath, cmd.Recursive); err != nil {
		return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, false, err.Error())
	}
	w.registry.Add(cmd.ChannelID, cmd.RootPath, cmd.Recursive)
	return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, true, "")
}

func (w *Worker) handleRemove(cmd message.Command) (thread.Outcome, message.Message) {
	if err := w.platform.HandleRemove(cmd.ChannelID); err != nil {
		return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, false, err.Error())
	}
	w.registry.Remove(cmd.ChannelID)

	ack := message.NewAck(cmd.ID, cmd.ChannelID, true, "")
	if w.registry.Empty() {
		return thread.OutcomeTriggerStop, ack
	}
	return thread.OutcomeAck, ack
}

func (w *Worker) handleDrain(cmd message.Command) (thread.Outcome, message.Message) {
	return thread.OutcomeNothing, message.Message{}
}

func (w *Worker) listen(ctx context.Context, out *queue.Queue) error {
	if err := w.platform.Listen(ctx, out); err != nil {
		return fmt.Errorf("platform listen: %w", err)
	}
	return nil
}
