// Best-effort session title generation. Runs detached from the turn that
// triggered it; every failure degrades to a deterministic default.
package title

import (
	"context"
	"strings"

	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/sources/store/models"
	"gemchat/gemchat/utils/logging"

	"go.uber.org/zap"
)

const systemInstruction = "You are a title generator. Respond with a concise, 4-8 word title for the user message. No punctuation, no quotes."

const (
	maxTitleRunes     = 60
	defaultTitleRunes = 48
)

type Generator struct {
	dao   *dao.ConversationDAO
	gen   genai.Generator
	model string
}

func NewGenerator(d *dao.ConversationDAO, gen genai.Generator, model string) *Generator {
	return &Generator{dao: d, gen: gen, model: model}
}

// Generate asks the cheap model variant for a title and writes it through
// SetTitle. SetTitle is a no-op when the session has been deleted in the
// meantime, so a racing delete needs no special handling here.
func (g *Generator) Generate(ctx context.Context, sessionID, firstMessage, apiKey string) {
	raw, err := g.gen.GenerateContent(ctx, genai.Request{
		Model:        g.model,
		SystemPrompt: systemInstruction,
		History:      []genai.Message{{Role: models.RoleUser, Content: firstMessage}},
		APIKey:       apiKey,
	})
	if err != nil {
		logging.AppLogger.Warn("title generation failed, using default",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	name := Normalize(raw)
	if name == "" {
		name = DefaultTitle(firstMessage)
	}
	if err := g.dao.SetTitle(ctx, sessionID, name); err != nil {
		logging.ErrorLogger.Error("failed to store session title",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// Normalize keeps the first line, strips wrapping quote characters and
// truncates to the maximum title length.
func Normalize(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”‘’[]")
	runes := []rune(s)
	if len(runes) > maxTitleRunes {
		s = string(runes[:maxTitleRunes])
	}
	return strings.TrimSpace(s)
}

// DefaultTitle derives a title from the user message itself: its leading
// characters, with an ellipsis when truncated.
func DefaultTitle(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	runes := []rune(msg)
	if len(runes) > defaultTitleRunes {
		return string(runes[:defaultTitleRunes]) + "…"
	}
	return msg
}
