package ndjson

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/go-logr/logr"
)

const (
	InJoin     = "join"
	InQuit     = "quit"
	InActivity = "activity"
	InToggle   = "toggle"
	InForce    = "force"
	InReturn   = "return"
	InGrant    = "grant"
	InRevoke   = "revoke"
)

const maxLineBytes = 1 << 20

var ErrUnknownCommand = errors.New("unknown command type")

// Command is one input line.
type Command struct {
	Type       string    `json:"type"`
	Session    string    `json:"session"`
	Kind       string    `json:"kind,omitempty"`
	Position   *Position `json:"position,omitempty"`
	AFK        *bool     `json:"afk,omitempty"`
	Permission string    `json:"permission,omitempty"`
}

// Engine is the part of the AFK engine the source drives.
type Engine interface {
	OnSessionJoin(id domain.SessionID)
	OnSessionQuit(id domain.SessionID) (domain.SessionSummary, bool)
	OnActivity(id domain.SessionID, kind domain.ActivityKind, pos *domain.Location) bool
	ToggleManualAFK(id domain.SessionID) bool
	ForceAFK(id domain.SessionID, afk bool) bool
	ReturnFromZone(ctx context.Context, id domain.SessionID) domain.ReturnResult
}

type Grants interface {
	Grant(id domain.SessionID, permission string)
	Revoke(id domain.SessionID, permission string)
}

type Source struct {
	engine Engine
	grants Grants
	sink   *Sink
	log    logr.Logger
}

// NewSource builds a source. grants may be nil, in which case grant and
// revoke lines are rejected.
func NewSource(engine Engine, grants Grants, sink *Sink, log logr.Logger) *Source {
	return &Source{engine: engine, grants: grants, sink: sink, log: log}
}

// Run dispatches lines until r is exhausted or ctx is done. Malformed lines
// are reported on the sink and skipped.
func (s *Source) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				return ctx.Err()
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Source) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var cmd Command
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		s.log.V(1).Info("skipping malformed line", "error", err.Error())
		s.sink.Error("", fmt.Sprintf("decode command: %v", err))
		return
	}

	if err := s.Dispatch(ctx, cmd); err != nil {
		s.log.V(1).Info("command rejected", "type", cmd.Type, "session", cmd.Session, "error", err.Error())
		s.sink.Error(domain.SessionID(cmd.Session), err.Error())
	}
}

// Dispatch applies one command to the engine.
func (s *Source) Dispatch(ctx context.Context, cmd Command) error {
	id := domain.SessionID(strings.TrimSpace(cmd.Session))
	if id == "" {
		return fmt.Errorf("%s: session is required", cmd.Type)
	}

	switch cmd.Type {
	case InJoin:
		s.engine.OnSessionJoin(id)
	case InQuit:
		s.engine.OnSessionQuit(id)
	case InActivity:
		kind := domain.ActivityKind(cmd.Kind)
		if !kind.Valid() {
			return fmt.Errorf("activity: unknown kind %q", cmd.Kind)
		}
		s.engine.OnActivity(id, kind, cmd.Position.location())
	case InToggle:
		s.engine.ToggleManualAFK(id)
	case InForce:
		if cmd.AFK == nil {
			return errors.New("force: afk is required")
		}
		s.engine.ForceAFK(id, *cmd.AFK)
	case InReturn:
		s.sink.ReturnResult(id, s.engine.ReturnFromZone(ctx, id))
	case InGrant, InRevoke:
		if s.grants == nil {
			return fmt.Errorf("%s: runtime grants are not available", cmd.Type)
		}
		if cmd.Permission == "" {
			return fmt.Errorf("%s: permission is required", cmd.Type)
		}
		if cmd.Type == InGrant {
			s.grants.Grant(id, cmd.Permission)
		} else {
			s.grants.Revoke(id, cmd.Permission)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}
