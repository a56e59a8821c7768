// gemchat/utils/types/chat.go
package types

type CreateSessionRequest struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
}

type TurnRequest struct {
	SessionID    string `json:"session_id"`
	Message      string `json:"message"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type TurnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
