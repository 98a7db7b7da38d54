package chat

import (
	"fmt"

	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/domain/llm"
)

// Tool history is rendered into plain assistant turns inside delimited
// blocks, so backends without native multi-turn tool support still see the
// full call/response trail.
const (
	toolCallOpen      = "<tool_call_parameters>"
	toolCallClose     = "</tool_call_parameters>"
	toolResponseOpen  = "<tool_call_response>"
	toolResponseClose = "</tool_call_response>"
)

// FlattenHistory converts stored messages into the role/content turns handed
// to a provider adapter.
func FlattenHistory(messages []conversation.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case conversation.RoleUser:
			turns = append(turns, llm.Turn{Role: llm.TurnRoleUser, Content: msg.Content})
		case conversation.RoleAssistant:
			turns = append(turns, llm.Turn{Role: llm.TurnRoleAssistant, Content: msg.Content})
		case conversation.RoleFunctionCall:
			turns = append(turns, llm.Turn{
				Role:    llm.TurnRoleAssistant,
				Content: wrapBlock(toolCallOpen, msg.Content, toolCallClose),
			})
		case conversation.RoleFunctionCallResult:
			turns = append(turns, llm.Turn{
				Role:    llm.TurnRoleAssistant,
				Content: wrapBlock(toolResponseOpen, msg.Content, toolResponseClose),
			})
		}
	}
	return turns
}

// ToolResultTurn renders a fresh tool result the same way FlattenHistory
// renders persisted ones.
func ToolResultTurn(result string) llm.Turn {
	return llm.Turn{
		Role:    llm.TurnRoleAssistant,
		Content: wrapBlock(toolResponseOpen, result, toolResponseClose),
	}
}

func wrapBlock(openTag, body, closeTag string) string {
	return fmt.Sprintf("%s\n%s\n%s", openTag, body, closeTag)
}
