// gemchat/controllers/chat.go
package controllers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gemchat/gemchat/config"
	"gemchat/gemchat/middlewares"
	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/sources/store/models"
	"gemchat/gemchat/utils/logging"
	"gemchat/gemchat/utils/types"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput rejects a turn before anything is persisted.
	ErrEmptyInput = errors.New("user message is empty")
	// ErrNoModel means neither the request, the session nor the config
	// names a model. There is no built-in default.
	ErrNoModel = errors.New("no model configured for this session")
)

// FallbackReply is persisted as the model message whenever the backend
// call fails, so the conversation history stays consistent.
const FallbackReply = "The request to the model failed. Please try again."

// TitleStarter runs title generation to completion on its own; callers
// never wait on it.
type TitleStarter interface {
	Generate(ctx context.Context, sessionID, firstMessage, apiKey string)
}

type ChatController struct {
	dao    *dao.ConversationDAO
	gen    genai.Generator
	titles TitleStarter
	cfg    config.GenAIConfig

	// One entry per session created in this process; consumed by the
	// session's first turn and never re-armed, not even when title
	// generation fails.
	titleArmed sync.Map
}

func NewChatController(d *dao.ConversationDAO, gen genai.Generator, titles TitleStarter, cfg config.GenAIConfig) *ChatController {
	return &ChatController{dao: d, gen: gen, titles: titles, cfg: cfg}
}

func (c *ChatController) CreateSession(ctx context.Context, req types.CreateSessionRequest) (*models.Session, error) {
	id := req.ID
	if id == "" {
		id = c.dao.NewSessionID()
	}
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	sess, err := c.dao.CreateSession(ctx, id, model, "")
	if err != nil {
		return nil, err
	}
	c.titleArmed.Store(id, struct{}{})
	return sess, nil
}

func (c *ChatController) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return c.dao.GetSession(ctx, id)
}

func (c *ChatController) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return c.dao.ListSessions(ctx)
}

func (c *ChatController) GetMessagesForSession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	if _, err := c.dao.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return c.dao.ListMessages(ctx, sessionID)
}

func (c *ChatController) DeleteSession(ctx context.Context, id string) error {
	return c.dao.DeleteSession(ctx, id)
}

func (c *ChatController) DeleteAllSessions(ctx context.Context) error {
	return c.dao.DeleteAllSessions(ctx)
}

func (c *ChatController) DeleteUntitledSessions(ctx context.Context, excludeID string) error {
	return c.dao.DeleteSessionsWithoutTitle(ctx, excludeID)
}

// SubmitTurn runs one user turn: persist the user message, call the
// text-generation backend with the session history, persist the reply.
// The user message is stored before the backend call so history is never
// lost; on failure a fixed fallback reply is stored instead and the
// classified error is returned alongside the consistent history.
func (c *ChatController) SubmitTurn(ctx context.Context, req types.TurnRequest) (*types.TurnResponse, error) {
	defer logging.LogDuration(ctx, "submit_turn")()

	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyInput
	}

	sess, err := c.dao.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = sess.Model
	}
	if model == "" {
		model = c.cfg.DefaultModel
	}
	if model == "" {
		return nil, ErrNoModel
	}
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = c.cfg.SystemPrompt
	}

	if _, err := c.dao.AppendMessage(ctx, req.SessionID, models.RoleUser, text); err != nil {
		return nil, err
	}

	history, err := c.buildHistory(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	apiKey := middlewares.APIKeyFromContext(ctx)
	reply, genErr := c.gen.GenerateContent(ctx, genai.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		History:      history,
		APIKey:       apiKey,
	})

	// First user turn of the session kicks off title generation. Fired
	// regardless of the turn's outcome and never awaited; the generator
	// reports back through the repository alone.
	if _, armed := c.titleArmed.LoadAndDelete(req.SessionID); armed {
		go c.titles.Generate(context.Background(), req.SessionID, text, apiKey)
	}

	if genErr != nil {
		logging.ErrorLogger.Error("text generation failed",
			zap.String("session_id", req.SessionID),
			zap.String("model", model),
			zap.Error(genErr))
		if _, err := c.dao.AppendMessage(ctx, req.SessionID, models.RoleModel, FallbackReply); err != nil {
			logging.ErrorLogger.Error("failed to persist fallback reply",
				zap.String("session_id", req.SessionID),
				zap.Error(err))
		}
		return nil, genErr
	}

	if _, err := c.dao.AppendMessage(ctx, req.SessionID, models.RoleModel, reply); err != nil {
		return nil, err
	}
	return &types.TurnResponse{SessionID: req.SessionID, Reply: reply}, nil
}

// buildHistory replays the stored conversation in canonical order,
// skipping system seed messages kept purely for local display.
func (c *ChatController) buildHistory(ctx context.Context, sessionID string) ([]genai.Message, error) {
	msgs, err := c.dao.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]genai.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == models.RoleSystem {
			continue
		}
		history = append(history, genai.Message{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}
