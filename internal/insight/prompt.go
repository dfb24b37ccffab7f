package insight

import (
	"fmt"
	"strings"
)

const postPromptTemplate = `You are reviewing an early-stage startup idea shared by a founder.
Give concise, constructive feedback: what is promising, the biggest risk, and one concrete next step.

Title: %s

%s`

// PostPrompt builds the default prompt used when the user asks for an insight
// on a post without writing a question.
func PostPrompt(title, content string) string {
	return fmt.Sprintf(postPromptTemplate, strings.TrimSpace(title), strings.TrimSpace(content))
}
