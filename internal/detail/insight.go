package detail

import (
	"context"
	"strings"
	"time"

	"synerthree/internal/insight"
	"synerthree/internal/session"
)

// InsightCommentPrefix marks comments that hold a saved AI insight.
const InsightCommentPrefix = "AI insight: "

// RequestInsight asks for an AI insight on the post. An empty prompt asks for
// feedback on the post itself. With persist the answer is also saved as a
// comment; the exchange is kept even if saving fails.
func (c *Controller) RequestInsight(ctx context.Context, prompt string, persist bool) (Exchange, error) {
	if err := session.Require(c.sess); err != nil {
		return Exchange{}, err
	}
	card, err := c.Card()
	if err != nil {
		return Exchange{}, err
	}

	c.mu.Lock()
	if c.insightPending {
		c.mu.Unlock()
		return Exchange{}, ErrInsightInFlight
	}
	c.insightPending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.insightPending = false
		c.mu.Unlock()
	}()

	prompt = strings.TrimSpace(prompt)
	sent := prompt
	if sent == "" {
		post := card.Snapshot()
		sent = insight.PostPrompt(post.Title, post.Content)
	}

	text, err := c.insights.Ask(ctx, c.sess.Token, insight.Request{
		Prompt: sent,
		PostID: c.postID,
		UserID: c.sess.UserID,
	})
	if err != nil {
		c.log.LogError(ctx, "insight", err)
		return Exchange{}, err
	}

	ex := Exchange{Prompt: prompt, Response: text, CreatedAt: time.Now().UTC()}
	var saveErr error
	if persist {
		_, saveErr = c.AddComment(ctx, InsightCommentPrefix+text)
		ex.Saved = saveErr == nil
	}

	c.mu.Lock()
	c.exchanges = append(c.exchanges, ex)
	c.mu.Unlock()
	c.log.LogAction(ctx, "insight", map[string]interface{}{"post_id": c.postID, "saved": ex.Saved})
	return ex, saveErr
}
