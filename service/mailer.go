package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
)

// Message is one outbound notification.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Metadata map[string]string
}

// Notifier delivers messages. Failures are reported to the caller, which
// treats them as non-fatal.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// MailService posts messages to an HTTP mail API.
type MailService struct {
	config     *config.MailConfig
	httpClient *http.Client
}

// mailRequest is the body accepted by the mail API
type mailRequest struct {
	From    string    `json:"from"`
	To      []string  `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
	Tags    []mailTag `json:"tags,omitempty"`
}

type mailTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// mailResponse is returned on success; errors carry a message instead.
type mailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

func NewMailService(cfg *config.MailConfig) *MailService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send delivers msg and returns an error when the API does not accept it.
func (s *MailService) Send(ctx context.Context, msg Message) error {
	if s.config.APIURL == "" {
		return fmt.Errorf("mail API is not configured")
	}

	reqBody := mailRequest{
		From:    s.config.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	for k, v := range msg.Metadata {
		reqBody.Tags = append(reqBody.Tags, mailTag{Name: k, Value: v})
	}
	sort.Slice(reqBody.Tags, func(i, j int) bool { return reqBody.Tags[i].Name < reqBody.Tags[j].Name })

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result mailResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Message != "" {
			return fmt.Errorf("mail API error (%d): %s", resp.StatusCode, result.Message)
		}
		return fmt.Errorf("mail API error (%d)", resp.StatusCode)
	}
	return nil
}
