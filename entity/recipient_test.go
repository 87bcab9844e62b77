package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipientStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from RecipientStatus
		to   RecipientStatus
		want bool
	}{
		{RecipientStatusPending, RecipientStatusSent, true},
		{RecipientStatusSent, RecipientStatusDelivered, true},
		{RecipientStatusSent, RecipientStatusClicked, true},
		{RecipientStatusDelivered, RecipientStatusOpened, true},
		{RecipientStatusOpened, RecipientStatusOpened, true},

		// lifecycle never moves backwards
		{RecipientStatusClicked, RecipientStatusOpened, false},
		{RecipientStatusOpened, RecipientStatusDelivered, false},
		{RecipientStatusDelivered, RecipientStatusSent, false},

		// failed is reachable from anywhere but is terminal
		{RecipientStatusPending, RecipientStatusFailed, true},
		{RecipientStatusClicked, RecipientStatusFailed, true},
		{RecipientStatusFailed, RecipientStatusSent, false},
		{RecipientStatusFailed, RecipientStatusFailed, false},
	}

	for _, tt := range tests {
		got := tt.from.CanTransitionTo(tt.to)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestContentItemFallbacks(t *testing.T) {
	empty := ContentItem{}
	assert.Equal(t, "New post", empty.SubjectLine())
	assert.Equal(t, "<h1>New post</h1>", empty.HtmlBody())
	assert.Equal(t, "New post", empty.TextBody())
	assert.False(t, empty.IsPublished())

	titled := ContentItem{Title: "Hello World", Status: ContentStatusPublished}
	assert.Equal(t, "Hello World", titled.SubjectLine())
	assert.Equal(t, "<h1>Hello World</h1>", titled.HtmlBody())
	assert.Equal(t, "Hello World", titled.TextBody())
	assert.True(t, titled.IsPublished())

	full := ContentItem{
		Title:        "Hello World",
		EmailSubject: "A better subject",
		Html:         "<p>body</p>",
		Plaintext:    "body",
	}
	assert.Equal(t, "A better subject", full.SubjectLine())
	assert.Equal(t, "<p>body</p>", full.HtmlBody())
	assert.Equal(t, "body", full.TextBody())
}
