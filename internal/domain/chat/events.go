package chat

// EventKind discriminates reconstructed stream events.
type EventKind string

const (
	// EventText carries one text delta.
	EventText EventKind = "text"
	// EventToolCall carries one completed tool-call proposal.
	EventToolCall EventKind = "tool_call"
	// EventAuthError is terminal: the backend rejected the credential.
	EventAuthError EventKind = "auth_error"
	// EventAPIError is terminal: the backend failed for a non-auth reason.
	EventAPIError EventKind = "api_error"
)

// ToolCallProposal is a fully reassembled tool call with parsed arguments.
type ToolCallProposal struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Event is one item of the reconstructed stream.
type Event struct {
	Kind    EventKind
	Delta   string
	Call    *ToolCallProposal
	Message string
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventAuthError || e.Kind == EventAPIError
}
