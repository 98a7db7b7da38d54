package llm

import (
	"context"
	"errors"
)

// ErrAuth marks a credential rejected by the completion backend. Adapters
// wrap transport-level auth failures with this sentinel so the stream layer
// can surface a distinct terminal event.
var ErrAuth = errors.New("provider rejected credential")

// Turn is one flattened role/content pair handed to a backend. Tool history
// has already been rendered into synthetic assistant turns by the caller, so
// adapters only ever see user, assistant and system roles.
type Turn struct {
	Role    string
	Content string
}

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
	TurnRoleSystem    = "system"
)

// ToolSpec declares one callable function to the backend. Name is the
// catalog-qualified code; Parameters is an already-sanitized JSON schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request describes one streaming completion.
type Request struct {
	Model      string
	Credential string
	Messages   []Turn
	Tools      []ToolSpec
}

// Chunk is the normalized unit all adapters emit. A chunk either carries a
// text delta, or a piece of a streamed tool call: CallStart opens a new call
// buffer (ToolName may arrive on the start chunk or a later one), ArgsDelta
// appends to the call's argument JSON text.
type Chunk struct {
	Text      string
	CallStart bool
	CallID    string
	ToolName  string
	ArgsDelta string
}

// Stream is a pull-based chunk sequence bound to one completion. Recv returns
// io.EOF when the backend finishes; any other error is terminal.
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}

// Adapter translates a Request into one backend family's wire format and
// opens a token stream.
type Adapter interface {
	Name() string
	StreamCompletion(ctx context.Context, req Request) (Stream, error)
}
