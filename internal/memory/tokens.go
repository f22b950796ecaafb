package memory

import (
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
)

// estimateTokens approximates the token count of text. Roughly two runes
// per token holds well enough across languages for budget decisions.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	tokens := n / 2
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

func estimateMessageTokens(msg *ai.Message) int {
	if msg == nil {
		return 0
	}
	total := 0
	for _, part := range msg.Content {
		switch {
		case part.IsText():
			total += estimateTokens(part.Text)
		case part.ToolRequest != nil:
			total += estimateTokens(part.ToolRequest.Name) + 16
		case part.ToolResponse != nil:
			if out, ok := part.ToolResponse.Output.(string); ok {
				total += estimateTokens(out)
			} else {
				total += 32
			}
		}
	}
	return total
}

func estimateMessagesTokens(msgs []*ai.Message) int {
	total := 0
	for _, msg := range msgs {
		total += estimateMessageTokens(msg)
	}
	return total
}
