package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// asyncQueue is shared by an asyncHandler and every handler derived from it.
type asyncQueue struct {
	ch      chan queued
	done    sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

type queued struct {
	h   slog.Handler
	rec slog.Record
}

// asyncHandler moves record encoding off the request path. Records are
// dropped, and counted, when the queue is full.
type asyncHandler struct {
	inner slog.Handler
	q     *asyncQueue
}

func newAsyncHandler(inner slog.Handler, size int) *asyncHandler {
	q := &asyncQueue{ch: make(chan queued, size)}
	q.done.Add(1)
	go func() {
		defer q.done.Done()
		for item := range q.ch {
			_ = item.h.Handle(context.Background(), item.rec)
		}
	}()
	return &asyncHandler{inner: inner, q: q}
}

func (h *asyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *asyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.q.ch <- queued{h: h.inner, rec: rec.Clone()}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *asyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &asyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *asyncHandler) WithGroup(name string) slog.Handler {
	return &asyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// Dropped returns the number of records discarded because the queue was full.
func (h *asyncHandler) Dropped() int64 { return h.q.dropped.Load() }

// Close drains queued records. It is safe to call more than once.
func (h *asyncHandler) Close() {
	h.q.once.Do(func() { close(h.q.ch) })
	h.q.done.Wait()
}
