package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"moopoint/chat-api/internal/domain/llm"
)

// ReconstructionError indicates a tool call whose buffered argument text is
// not valid JSON at flush time. It aborts the sequence; partial arguments are
// never guessed or dropped.
type ReconstructionError struct {
	ToolName string
	Raw      string
	Err      error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruct tool call %q: invalid argument JSON: %v", e.ToolName, e.Err)
}

func (e *ReconstructionError) Unwrap() error {
	return e.Err
}

// Reconstructor turns a provider chunk stream into a clean event sequence.
// It holds at most one in-flight tool-call buffer: a new call start while the
// buffer is non-empty flushes the buffered call first, since providers do not
// always mark the end of a call. One reconstructor is bound to one stream and
// is not restartable.
type Reconstructor struct {
	stream  llm.Stream
	buffer  *callBuffer
	queue   []Event
	done    bool
	failure error
}

type callBuffer struct {
	name string
	args strings.Builder
}

// NewReconstructor binds a reconstructor to one chunk stream.
func NewReconstructor(stream llm.Stream) *Reconstructor {
	return &Reconstructor{stream: stream}
}

// Next returns the next event. It returns io.EOF after the final event and a
// *ReconstructionError when buffered tool-call arguments fail to parse.
// Transport failures surface as terminal AuthError/APIError events, not as
// Go errors, so callers can render them distinctly.
func (r *Reconstructor) Next() (*Event, error) {
	for {
		if len(r.queue) > 0 {
			event := r.queue[0]
			r.queue = r.queue[1:]
			if event.Terminal() {
				r.done = true
				r.queue = nil
			}
			return &event, nil
		}
		if r.failure != nil {
			return nil, r.failure
		}
		if r.done {
			return nil, io.EOF
		}

		chunk, err := r.stream.Recv()
		if err != nil {
			r.finish(err)
			continue
		}
		r.apply(chunk)
	}
}

func (r *Reconstructor) apply(chunk *llm.Chunk) {
	if chunk == nil {
		return
	}

	if chunk.CallStart {
		if err := r.flush(); err != nil {
			r.failure = err
			return
		}
		r.buffer = &callBuffer{}
	}

	if r.buffer != nil {
		if chunk.ToolName != "" {
			r.buffer.name = chunk.ToolName
		}
		if chunk.ArgsDelta != "" {
			r.buffer.args.WriteString(chunk.ArgsDelta)
		}
	}

	if chunk.Text != "" {
		r.queue = append(r.queue, Event{Kind: EventText, Delta: chunk.Text})
	}
}

// finish handles end of stream or transport failure: a trailing open buffer
// is flushed on clean EOF, transport errors become terminal events.
func (r *Reconstructor) finish(err error) {
	if errors.Is(err, io.EOF) {
		if flushErr := r.flush(); flushErr != nil {
			r.failure = flushErr
			return
		}
		r.done = true
		return
	}

	if errors.Is(err, llm.ErrAuth) {
		r.queue = append(r.queue, Event{Kind: EventAuthError, Message: err.Error()})
		return
	}
	r.queue = append(r.queue, Event{Kind: EventAPIError, Message: err.Error()})
}

func (r *Reconstructor) flush() error {
	if r.buffer == nil || r.buffer.name == "" {
		r.buffer = nil
		return nil
	}

	raw := r.buffer.args.String()
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return &ReconstructionError{ToolName: r.buffer.name, Raw: raw, Err: err}
	}

	r.queue = append(r.queue, Event{
		Kind: EventToolCall,
		Call: &ToolCallProposal{Name: r.buffer.name, Arguments: args},
	})
	r.buffer = nil
	return nil
}

// Close releases the underlying stream.
func (r *Reconstructor) Close() error {
	return r.stream.Close()
}
