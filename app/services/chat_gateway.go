package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/rsvp-relay/config"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// ChatGateway sends messages through the chat provider
type ChatGateway interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// SendRequest is one outbound message. Filename and MediaURL are set together.
type SendRequest struct {
	Number     string
	InstanceID string
	Text       string
	Filename   string
	MediaURL   string
}

// SendResult carries the provider message id when the provider returned one
type SendResult struct {
	MessageID string
}

// MediaAttachment builds the filename and public URL of a stored media path
func MediaAttachment(publicBaseURL, storedPath string) (filename, mediaURL string) {
	storedPath = strings.TrimSpace(storedPath)
	if storedPath == "" {
		return "", ""
	}
	return path.Base(storedPath), publicBaseURL + storedPath
}

// ChatGatewayImpl calls the provider's GET /send endpoint
type ChatGatewayImpl struct {
	config *config.ProviderConfig
	client *http.Client
	logger *zap.Logger
}

func NewChatGateway(cfg *config.ProviderConfig, logger *zap.Logger) ChatGateway {
	return &ChatGatewayImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("gateway"),
	}
}

type sendResponse struct {
	Status    string `json:"status"`
	Message   any    `json:"message"`
	MessageID string `json:"message_id"`
	ID        string `json:"id"`
	Data      struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
		ID string `json:"id"`
	} `json:"data"`
}

func (g *ChatGatewayImpl) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	params := url.Values{}
	params.Set("number", req.Number)
	params.Set("instance_id", req.InstanceID)
	params.Set("message", req.Text)
	params.Set("access_token", g.config.AccessToken)
	params.Set("type", MessageTypeText)
	if req.MediaURL != "" {
		params.Set("type", MessageTypeMedia)
		params.Set("filename", req.Filename)
		params.Set("media_url", req.MediaURL)
	}

	endpoint := strings.TrimRight(g.config.BaseURL, "/") + "/send?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat provider returned %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		g.logger.Debug("unparsed provider response", zap.String("number", req.Number), zap.Error(err))
		return &SendResult{}, nil
	}
	if strings.EqualFold(parsed.Status, "error") {
		return nil, fmt.Errorf("chat provider rejected message: %v", parsed.Message)
	}

	return &SendResult{MessageID: firstNonEmpty(parsed.Data.Key.ID, parsed.Data.ID, parsed.MessageID, parsed.ID)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// MockChatGateway records sends instead of calling the provider
type MockChatGateway struct {
	mu           sync.Mutex
	SentMessages []MockSentMessage
	// FailAt makes the n-th call (1 based) fail when > 0
	FailAt int
	calls  int
}

// MockSentMessage represents a recorded send
type MockSentMessage struct {
	SendRequest
	MessageID string
	SentAt    time.Time
}

func NewMockChatGateway() *MockChatGateway {
	return &MockChatGateway{SentMessages: make([]MockSentMessage, 0)}
}

func (m *MockChatGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.FailAt > 0 && m.calls == m.FailAt {
		return nil, fmt.Errorf("mock chat provider failure on call %d", m.calls)
	}

	id := fmt.Sprintf("mock-%d", m.calls)
	m.SentMessages = append(m.SentMessages, MockSentMessage{SendRequest: req, MessageID: id, SentAt: utils.UTCNow()})
	return &SendResult{MessageID: id}, nil
}

// Sent returns a copy of the recorded sends
func (m *MockChatGateway) Sent() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// Texts returns the text of every recorded send in order
func (m *MockChatGateway) Texts() []string {
	sent := m.Sent()
	out := make([]string, 0, len(sent))
	for _, s := range sent {
		out = append(out, s.Text)
	}
	return out
}

// ClearSentMessages clears the sent messages list
func (m *MockChatGateway) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockSentMessage, 0)
}
