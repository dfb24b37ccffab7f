package fakebackend

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// cannedInsights are written the way the hosted model answers: escape
// sequences arrive as literal text and are decoded by the client.
var cannedInsights = []string{
	`Strengths:\n- Clear target audience\n- Low upfront cost\n\nRisks:\n- Regulation varies by city\n\nNext step: interview five potential customers.`,
	`This idea has a strong community angle.\n\nConsider a pilot with a single neighborhood and measure repeat usage, which tells you more than sign-ups.`,
	`Market check:\n\t1. Who pays?\n\t2. Who benefits?\n\t3. Who maintains it?\n\nAnswering all three in one sentence is a good \"elevator pitch\" test \ud83d\ude80`,
	`Think about the caf\u00e9 test: could you explain it to a stranger over coffee in under a minute?\nIf not, narrow the scope.`,
}

// cannedInsight picks an answer deterministically from the prompt.
func cannedInsight(prompt string, postID uint) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.TrimSpace(prompt)))
	answer := cannedInsights[int(h.Sum32()%uint32(len(cannedInsights)))]
	if postID == 0 {
		return answer
	}
	return fmt.Sprintf(`Insight for idea #%d:\n\n%s`, postID, answer)
}
