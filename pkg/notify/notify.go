// Package notify delivers notices produced by chat activity to the
// notification subsystem. Delivery is fire-and-forget from the caller's point
// of view: the gateway logs a failing sink and moves on.
package notify

import (
	"context"
	"errors"
)

const (
	CategoryMessage = "message"
	CategoryMention = "chat"
)

// Notice is one notification request for one user.
type Notice struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	UserID   string `json:"userId"`
}

// Sink accepts a batch of notices.
type Sink interface {
	CreateMany(ctx context.Context, notices []Notice) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, notices []Notice) error

func (f SinkFunc) CreateMany(ctx context.Context, notices []Notice) error {
	return f(ctx, notices)
}

// Nop discards every notice.
var Nop Sink = SinkFunc(func(context.Context, []Notice) error { return nil })

// Fanout delivers to every sink, joining their errors. One failing sink does
// not stop delivery to the rest.
type Fanout []Sink

func (f Fanout) CreateMany(ctx context.Context, notices []Notice) error {
	if len(notices) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f {
		if err := s.CreateMany(ctx, notices); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
