// Client for the generativelanguage REST API.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"gemchat/gemchat/config"
	"gemchat/gemchat/utils/logging"
)

// Message is a chat message in a provider-agnostic format.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// Request is one text-generation call: a model, an optional system
// instruction and the ordered conversation history.
type Request struct {
	Model        string
	SystemPrompt string
	History      []Message
	APIKey       string // per-request key, overrides the configured one
}

// Generator is the contract the orchestration layer consumes. Any failure
// is a *Error carrying the classified kind.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (string, error)
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Generator = &Client{}

func NewClient(cfg config.GenAIConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Wire structs (internal to this package) ---

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

func (c *Client) GenerateContent(ctx context.Context, req Request) (string, error) {
	defer logging.LogDuration(ctx, "genai_generate_content")()

	key := req.APIKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return "", &Error{Kind: KindAuth, Message: "missing API key"}
	}

	contents := make([]geminiContent, len(req.History))
	for i, msg := range req.History {
		contents[i] = geminiContent{
			Parts: []geminiPart{{Text: msg.Content}},
			Role:  msg.Role,
		}
	}
	payload := geminiRequest{Contents: contents}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindMalformed, Err: err}
	}

	url := c.baseURL + "/models/" + req.Model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	httpReq.Header.Set("x-goog-api-key", key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", ClassifyStatus(resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Err: err}
	}
	if len(parsed.Candidates) == 0 {
		return "", &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "no candidates in response"}
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &Error{Kind: KindEmptyReply, Status: resp.StatusCode}
	}
	return text, nil
}
