package dep

import (
	"bytes"
	"campaigner/config"
	"campaigner/pkg/errutil"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const requestTimeout = 20 * time.Second

type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
	Text    string   `json:"text"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// BatchResult is one slot of the provider's batch response, positionally
// matching the submitted messages. An empty ID means that message failed.
type BatchResult struct {
	ID string `json:"id"`
}

type EmailItem struct {
	ID        string `json:"id"`
	LastEvent string `json:"last_event"`
	CreatedAt string `json:"created_at"`
}

type ListEmailsResult struct {
	Items   []*EmailItem
	HasMore bool
}

type EmailService interface {
	// SendBatch submits up to one batch of messages in a single provider
	// call. The idempotency key makes re-submission after a crash safe.
	SendBatch(ctx context.Context, messages []*Message, idempotencyKey string) ([]*BatchResult, error)
	// ListEmails pages through sent messages, most recent first.
	ListEmails(ctx context.Context, limit int, after string) (*ListEmailsResult, error)
	From() string
	ReplyTo() string
	Close(ctx context.Context) error
}

type emailService struct {
	apiKey  string
	baseUrl string
	from    string
	replyTo string

	client *http.Client
}

// NewEmailService validates the provider configuration; missing api_key or
// from is a config error raised here, at the point of use, not at startup.
func NewEmailService(_ context.Context, cfg config.Resend) (EmailService, error) {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil, errutil.ConfigError(errors.New("resend is not configured, set resend.api_key and resend.from"))
	}

	baseUrl := cfg.BaseURL
	if baseUrl == "" {
		baseUrl = "https://api.resend.com"
	}

	return &emailService{
		apiKey:  cfg.APIKey,
		baseUrl: baseUrl,
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

func (s *emailService) From() string {
	return s.from
}

func (s *emailService) ReplyTo() string {
	return s.replyTo
}

type sendBatchResponse struct {
	Data []*BatchResult `json:"data"`
}

func (s *emailService) SendBatch(ctx context.Context, messages []*Message, idempotencyKey string) ([]*BatchResult, error) {
	js, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/emails/batch", s.baseUrl), bytes.NewReader(js))
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res := new(sendBatchResponse)
	if err := s.doJson(req, res); err != nil {
		return nil, err
	}

	return res.Data, nil
}

type listEmailsResponse struct {
	Data    []*EmailItem `json:"data"`
	HasMore bool         `json:"has_more"`
}

func (s *emailService) ListEmails(ctx context.Context, limit int, after string) (*ListEmailsResult, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if after != "" {
		params.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/emails?%s", s.baseUrl, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	res := new(listEmailsResponse)
	if err := s.doJson(req, res); err != nil {
		return nil, err
	}

	return &ListEmailsResult{
		Items:   res.Data,
		HasMore: res.HasMore,
	}, nil
}

func (s *emailService) doJson(req *http.Request, dst interface{}) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return errutil.ProviderError(fmt.Errorf("resend request failed: %v", err))
	}

	defer func() {
		_ = res.Body.Close()
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return errutil.ProviderError(fmt.Errorf("read resend response failed: %v", err))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errutil.ProviderError(fmt.Errorf("resend returned status %d: %s", res.StatusCode, string(b)))
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return errutil.ProviderError(fmt.Errorf("decode resend response failed: %v", err))
	}

	return nil
}

func (s *emailService) Close(_ context.Context) error {
	return nil
}
