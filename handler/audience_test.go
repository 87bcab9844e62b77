package handler

import (
	"campaigner/entity"
	"campaigner/pkg/errutil"
	"campaigner/repo"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DedupesAndNormalizes(t *testing.T) {
	store := newMemStore()
	store.newsletter = []*entity.Recipient{
		testRecipient("Jane@Example.com", "Jane"),
		testRecipient("jane@example.com ", "Jane Dup"),
		testRecipient("bob@example.com", "Bob"),
		testRecipient("", "No Email"),
		testRecipient("   ", "Blank Email"),
	}

	h := NewAudienceHandler(store.audienceRepo(), nil)

	recipients, err := h.Resolve(context.Background(), entity.AudienceNewsletterMembers)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	// first occurrence wins, email is stored lowercased
	assert.Equal(t, "jane@example.com", recipients[0].GetEmail())
	assert.Equal(t, "Jane", recipients[0].GetName())
	assert.Equal(t, "bob@example.com", recipients[1].GetEmail())
}

func TestResolve_InvalidAudience(t *testing.T) {
	h := NewAudienceHandler(newMemStore().audienceRepo(), nil)

	_, err := h.Resolve(context.Background(), entity.AudienceUnknown)
	require.Error(t, err)
	assert.True(t, errutil.IsBadRequest(err))
}

func TestResolve_AudienceSelection(t *testing.T) {
	store := newMemStore()
	store.staff = []*entity.Recipient{testRecipient("staff@example.com", "Staff")}
	store.newsletter = []*entity.Recipient{testRecipient("news@example.com", "News")}
	store.paid = []*entity.Recipient{testRecipient("paid@example.com", "Paid")}

	h := NewAudienceHandler(store.audienceRepo(), nil)

	tests := []struct {
		audience  entity.Audience
		wantEmail string
	}{
		{entity.AudienceStaffMembers, "staff@example.com"},
		{entity.AudienceNewsletterMembers, "news@example.com"},
		{entity.AudiencePaidMembers, "paid@example.com"},
	}
	for _, tt := range tests {
		recipients, err := h.Resolve(context.Background(), tt.audience)
		require.NoError(t, err, tt.audience.String())
		require.Len(t, recipients, 1, tt.audience.String())
		assert.Equal(t, tt.wantEmail, recipients[0].GetEmail())
	}
}

func TestEstimateCount_UsesCache(t *testing.T) {
	store := newMemStore()
	store.newsletter = []*entity.Recipient{
		testRecipient("a@example.com", "A"),
		testRecipient("b@example.com", "B"),
	}

	cache := repo.NewBaseCache(context.Background())
	h := NewAudienceHandler(store.audienceRepo(), cache)

	count, err := h.EstimateCount(context.Background(), entity.AudienceNewsletterMembers)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	// source grows, cached estimate is returned until expiry
	store.newsletter = append(store.newsletter, testRecipient("c@example.com", "C"))

	count, err = h.EstimateCount(context.Background(), entity.AudienceNewsletterMembers)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
