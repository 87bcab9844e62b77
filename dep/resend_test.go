package dep

import (
	"campaigner/config"
	"campaigner/pkg/errutil"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResendConfig(baseUrl string) config.Resend {
	return config.Resend{
		APIKey:  "test-api-key",
		BaseURL: baseUrl,
		From:    "news@example.com",
	}
}

func TestNewEmailService_MissingConfig(t *testing.T) {
	_, err := NewEmailService(context.Background(), config.Resend{From: "news@example.com"})
	require.Error(t, err)
	assert.True(t, errutil.IsConfigError(err))

	_, err = NewEmailService(context.Background(), config.Resend{APIKey: "key"})
	require.Error(t, err)
	assert.True(t, errutil.IsConfigError(err))
}

func TestSendBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails/batch", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "campaign-7-batch-0", r.Header.Get("Idempotency-Key"))

		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		// body is a bare JSON array of messages
		var messages []*Message
		require.NoError(t, json.Unmarshal(b, &messages))
		require.Len(t, messages, 2)
		assert.Equal(t, []string{"a@example.com"}, messages[0].To)
		assert.Equal(t, "Weekly Digest", messages[0].Subject)
		require.Len(t, messages[0].Tags, 1)
		assert.Equal(t, "campaign_id", messages[0].Tags[0].Name)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"re_1"},{}]}`))
	}))
	defer server.Close()

	s, err := NewEmailService(context.Background(), testResendConfig(server.URL))
	require.NoError(t, err)

	results, err := s.SendBatch(context.Background(), []*Message{
		{
			From:    "news@example.com",
			To:      []string{"a@example.com"},
			Subject: "Weekly Digest",
			Html:    "<p>hello</p>",
			Tags:    []Tag{{Name: "campaign_id", Value: "7"}},
		},
		{
			From:    "news@example.com",
			To:      []string{"b@example.com"},
			Subject: "Weekly Digest",
			Html:    "<p>hello</p>",
		},
	}, "campaign-7-batch-0")
	require.NoError(t, err)

	// positional results, empty slot means the message was not accepted
	require.Len(t, results, 2)
	assert.Equal(t, "re_1", results[0].ID)
	assert.Empty(t, results[1].ID)
}

func TestSendBatch_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limit exceeded"}`))
	}))
	defer server.Close()

	s, err := NewEmailService(context.Background(), testResendConfig(server.URL))
	require.NoError(t, err)

	_, err = s.SendBatch(context.Background(), []*Message{{To: []string{"a@example.com"}}}, "key")
	require.Error(t, err)
	assert.True(t, errutil.IsProviderError(err))
	assert.Contains(t, err.Error(), "429")
}

func TestListEmails(t *testing.T) {
	var gotQueries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		gotQueries = append(gotQueries, r.URL.RawQuery)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"re_1","last_event":"delivered","created_at":"2024-05-01T10:00:00Z"}],"has_more":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[],"has_more":false}`))
	}))
	defer server.Close()

	s, err := NewEmailService(context.Background(), testResendConfig(server.URL))
	require.NoError(t, err)

	res, err := s.ListEmails(context.Background(), 100, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.HasMore)
	assert.Equal(t, "re_1", res.Items[0].ID)
	assert.Equal(t, "delivered", res.Items[0].LastEvent)

	res, err = s.ListEmails(context.Background(), 100, "re_1")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)

	assert.Equal(t, []string{"limit=100", "after=re_1&limit=100"}, gotQueries)
}

func TestListEmails_BadJson(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	s, err := NewEmailService(context.Background(), testResendConfig(server.URL))
	require.NoError(t, err)

	_, err = s.ListEmails(context.Background(), 100, "")
	require.Error(t, err)
	assert.True(t, errutil.IsProviderError(err))
}
