package comfy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Progress reports sampling progress of the running prompt.
type Progress struct {
	PromptID string
	Node     string
	Value    int
	Max      int
}

// Percent returns progress as a value between 0 and 100.
func (p Progress) Percent() float64 {
	if p.Max <= 0 {
		return 0
	}
	return float64(p.Value) / float64(p.Max) * 100
}

type ProgressFunc func(Progress)

// Session is an open event socket. The engine broadcasts events for every
// prompt on the socket's client id, so a Session must only be used by one
// waiter at a time.
type Session struct {
	conn             *websocket.Conn
	executionTimeout time.Duration
	logger           zerolog.Logger
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// Await reads events until the engine reports that promptID finished.
// Binary frames (previews), undecodable frames and events for other prompts
// are skipped. progress may be nil.
func (s *Session) Await(ctx context.Context, promptID string, progress ProgressFunc) error {
	parent := ctx
	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if parentErr := parent.Err(); parentErr != nil {
				return parentErr
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: prompt %s did not finish within %s", ErrExecutionTimeout, promptID, s.executionTimeout)
			}
			return fmt.Errorf("failed to read engine event: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("skipping undecodable engine event")
			continue
		}

		switch msg.Type {
		case MessageExecuting:
			var d ExecutingData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				continue
			}
			if d.Node == nil && d.PromptID == promptID {
				s.logger.Info().Str("prompt_id", promptID).Msg("execution finished")
				return nil
			}
		case MessageProgress:
			var d ProgressData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				continue
			}
			if progress != nil && (d.PromptID == promptID || d.PromptID == "") {
				progress(Progress{PromptID: promptID, Node: d.Node, Value: d.Value, Max: d.Max})
			}
		case MessageExecutionError:
			var d ExecutionErrorData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				continue
			}
			if d.PromptID == promptID {
				return fmt.Errorf("%w: node %s (%s): %s: %s", ErrExecution, d.NodeID, d.NodeType, d.ExceptionType, d.ExceptionMessage)
			}
		case MessageExecutionInterrupted:
			var d ExecutionErrorData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				continue
			}
			if d.PromptID == promptID {
				return fmt.Errorf("%w: prompt %s was interrupted at node %s", ErrExecution, promptID, d.NodeID)
			}
		}
	}
}
