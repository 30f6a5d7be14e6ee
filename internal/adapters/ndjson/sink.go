// Package ndjson drives the engine from newline-delimited JSON on a reader
// and reports host actions as newline-delimited JSON on a writer.
package ndjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
)

const (
	OutRemove       = "remove"
	OutRelocate     = "relocate"
	OutMessage      = "message"
	OutReturnResult = "return_result"
	OutError        = "error"
)

type Position struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

func positionOf(loc domain.Location) *Position {
	return &Position{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z}
}

func (p *Position) location() *domain.Location {
	if p == nil {
		return nil
	}
	return &domain.Location{World: p.World, X: p.X, Y: p.Y, Z: p.Z}
}

// Event is one output line.
type Event struct {
	Type     string    `json:"type"`
	Session  string    `json:"session,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
	Position *Position `json:"position,omitempty"`
	Result   string    `json:"result,omitempty"`
}

// Sink writes host actions. All methods are safe for concurrent use.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

var (
	_ ports.SessionSink = (*Sink)(nil)
	_ ports.Notifier    = (*Sink)(nil)
)

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) RemoveSession(ctx context.Context, id domain.SessionID, reason, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(Event{Type: OutRemove, Session: string(id), Reason: reason, Message: message})
}

func (s *Sink) RelocateSession(ctx context.Context, id domain.SessionID, dest domain.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(Event{Type: OutRelocate, Session: string(id), Position: positionOf(dest)})
}

func (s *Sink) Notify(id domain.SessionID, message string) {
	_ = s.write(Event{Type: OutMessage, Session: string(id), Message: message})
}

func (s *Sink) ReturnResult(id domain.SessionID, result domain.ReturnResult) {
	_ = s.write(Event{Type: OutReturnResult, Session: string(id), Result: result.String()})
}

func (s *Sink) Error(id domain.SessionID, msg string) {
	_ = s.write(Event{Type: OutError, Session: string(id), Message: msg})
}

func (s *Sink) write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}
