// Command watchcoreutil demonstrates watch/unwatch end-to-end against a
// real directory (it does not call Configure), in the spirit of the teacher's
// app/simple.App composition: load config, build a default logger,
// compose the root object, run until signalled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/watcher"
)

type logSubscriber struct {
	logger *slog.Logger
	root   string
}

func (s *logSubscriber) OnEvents(events []message.Event) {
	for _, e := range events {
		s.logger.Info("event",
			slog.String("root", s.root),
			slog.String("action", e.Action.String()),
			slog.String("kind", e.Kind.String()),
			slog.String("path", e.Path),
			slog.String("old_path", e.OldPath))
	}
}

func (s *logSubscriber) OnError(err error) {
	s.logger.Error("watch error", slog.String("root", s.root), slog.String("error", err.Error()))
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: %s <directory>", os.Args[0])
	}
	root := os.Args[1]

	w, err := watcher.New()
	if err != nil {
		return fmt.Errorf("construct watcher: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	channel, err := w.Watch(ctx, root, watcher.WatchOptions{Recursive: true}, &logSubscriber{logger: logger, root: root})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	logger.Info("watching", slog.String("root", root), slog.Uint64("channel_id", uint64(channel)))

	<-ctx.Done()

	if err := w.Unwatch(context.Background(), channel); err != nil {
		logger.Warn("unwatch failed", slog.String("error", err.Error()))
	}
	return w.Close(context.Background())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
