package handler

import (
	"campaigner/config"
	"campaigner/dep"
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatchConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Dispatch.BatchSize = 2
	cfg.Dispatch.BatchDelayMs = 0
	return cfg
}

func newTestDispatchHandler(store *memStore, emailService dep.EmailService, cfg *config.Config) DispatchHandler {
	if cfg == nil {
		cfg = testDispatchConfig()
	}
	audienceHandler := NewAudienceHandler(store.audienceRepo(), nil)
	return NewDispatchHandler(
		cfg,
		store,
		store.campaignRepo(),
		store.batchRepo(),
		store.recipientRepo(),
		store.contentRepo(),
		audienceHandler,
		func(ctx context.Context) (dep.EmailService, error) {
			return emailService, nil
		},
		nil,
	)
}

func TestRunCampaign_AllSent(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{
		testRecipient("a@example.com", "A"),
		testRecipient("b@example.com", "B"),
		testRecipient("c@example.com", "C"),
	}

	emailService := newFakeEmailService()
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusCompleted, stored.GetStatus())
	assert.Equal(t, uint64(3), stored.GetRecipientCount())
	assert.Equal(t, uint64(3), *stored.SentCount)
	assert.Zero(t, *stored.FailedCount)
	assert.Equal(t, float64(100), stored.GetProgressPct())
	assert.NotNil(t, stored.CompletedAt)

	// batch size 2 splits three recipients into two provider calls
	assert.Equal(t, []string{"campaign-1-batch-0", "campaign-1-batch-1"}, emailService.idempotencyKeys)
	require.Len(t, emailService.sentBatches, 2)
	assert.Len(t, emailService.sentBatches[0], 2)
	assert.Len(t, emailService.sentBatches[1], 1)

	msg := emailService.sentBatches[0][0]
	assert.Equal(t, "news@example.com", msg.From)
	assert.Equal(t, []string{"a@example.com"}, msg.To)
	assert.Equal(t, "Weekly Digest", msg.Subject)
	require.Len(t, msg.Tags, 2)
	assert.Equal(t, "campaign_id", msg.Tags[0].Name)
	assert.Equal(t, "recipient_id", msg.Tags[1].Name)

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	require.Len(t, recipients, 3)
	for _, recipient := range recipients {
		assert.Equal(t, entity.RecipientStatusSent, recipient.GetStatus())
		assert.NotEmpty(t, recipient.GetResendEmailID())
		assert.NotZero(t, recipient.GetSentAt())
	}

	batches, err := store.batchRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	require.Len(t, batches, 2)
	for _, batch := range batches {
		assert.Equal(t, entity.BatchStatusSubmitted, batch.GetStatus())
	}
}

func TestRunCampaign_MissingProviderID(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{
		testRecipient("a@example.com", "A"),
		testRecipient("b@example.com", "B"),
	}

	emailService := newFakeEmailService()
	emailService.sendFn = func(call int, messages []*dep.Message) ([]*dep.BatchResult, error) {
		// provider acknowledged only the first message
		return []*dep.BatchResult{{ID: "re_ok"}, {}}, nil
	}
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusCompleted, stored.GetStatus())
	assert.Equal(t, uint64(1), *stored.SentCount)
	assert.Equal(t, uint64(1), *stored.FailedCount)
	assert.Equal(t, float64(100), stored.GetProgressPct())

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.Equal(t, entity.RecipientStatusSent, recipients[0].GetStatus())
	assert.Equal(t, entity.RecipientStatusFailed, recipients[1].GetStatus())
	assert.Equal(t, missingProviderIDErr, recipients[1].GetLastError())
	assert.NotZero(t, recipients[1].GetFailedAt())

	batches, err := store.batchRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, entity.BatchStatusFailed, batches[0].GetStatus())
	assert.Equal(t, uint64(1), batches[0].GetSentCount())
	assert.Equal(t, uint64(1), batches[0].GetFailedCount())
}

func TestRunCampaign_BatchFailureKeepsGoing(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{
		testRecipient("a@example.com", "A"),
		testRecipient("b@example.com", "B"),
		testRecipient("c@example.com", "C"),
	}

	emailService := newFakeEmailService()
	emailService.sendFn = func(call int, messages []*dep.Message) ([]*dep.BatchResult, error) {
		if call == 0 {
			return nil, errors.New("rate limited")
		}
		results := make([]*dep.BatchResult, 0, len(messages))
		for i := range messages {
			results = append(results, &dep.BatchResult{ID: providerID(call, i)})
		}
		return results, nil
	}
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	// a failed batch does not fail the run
	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusCompleted, stored.GetStatus())
	assert.Equal(t, uint64(1), *stored.SentCount)
	assert.Equal(t, uint64(2), *stored.FailedCount)

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientStatusFailed, recipients[0].GetStatus())
	assert.Equal(t, "rate limited", recipients[0].GetLastError())
	assert.Equal(t, entity.RecipientStatusFailed, recipients[1].GetStatus())
	assert.Equal(t, entity.RecipientStatusSent, recipients[2].GetStatus())
}

func TestRunCampaign_NoEligibleRecipients(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()

	h := newTestDispatchHandler(store, newFakeEmailService(), nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusFailed, stored.GetStatus())
	assert.Contains(t, *stored.Error, "no eligible recipients")
}

func TestRunCampaign_UnpublishedContent(t *testing.T) {
	store := newMemStore()
	store.contents[1] = entity.ContentItem{ID: 1, Title: "Draft", Status: "draft"}
	store.newsletter = []*entity.Recipient{testRecipient("a@example.com", "A")}

	h := newTestDispatchHandler(store, newFakeEmailService(), nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusFailed, stored.GetStatus())
}

func TestRunCampaign_NotRunningIsNoOp(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{testRecipient("a@example.com", "A")}

	emailService := newFakeEmailService()
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusAwaitingConfirmation)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusAwaitingConfirmation, stored.GetStatus())
	assert.Zero(t, emailService.sendCalls)
}

func TestRunCampaign_SecondRunIsNoOp(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{testRecipient("a@example.com", "A")}

	emailService := newFakeEmailService()
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))
	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	// recipients were materialized exactly once
	count, err := store.recipientRepo().CountByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, 1, emailService.sendCalls)
}

func TestRunCampaign_ConcurrentRunIsNoOp(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{testRecipient("a@example.com", "A")}

	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	emailService := newFakeEmailService()
	emailService.sendFn = func(call int, messages []*dep.Message) ([]*dep.BatchResult, error) {
		entered <- struct{}{}
		<-release

		results := make([]*dep.BatchResult, 0, len(messages))
		for i := range messages {
			results = append(results, &dep.BatchResult{ID: providerID(call, i)})
		}
		return results, nil
	}

	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	first := make(chan error, 1)
	go func() {
		first <- h.RunCampaign(context.Background(), campaign.GetID())
	}()

	// second run starts while the first is blocked inside the provider call
	<-entered
	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	close(release)
	require.NoError(t, <-first)

	count, err := store.recipientRepo().CountByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, 1, emailService.sendCalls)

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusCompleted, stored.GetStatus())
}

func TestRunCampaign_ReusesMaterializedRecipients(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()
	store.newsletter = []*entity.Recipient{testRecipient("fresh@example.com", "Fresh")}

	emailService := newFakeEmailService()
	h := newTestDispatchHandler(store, emailService, nil)

	campaign := seededCampaign(store, entity.CampaignStatusRunning)

	// snapshot from an earlier attempt survives a crash-resume
	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{
		{
			CampaignID: campaign.ID,
			Email:      goutil.String("snapshot@example.com"),
			Status:     entity.RecipientStatusPending,
		},
	}))

	require.NoError(t, h.RunCampaign(context.Background(), campaign.GetID()))

	require.Len(t, emailService.sentBatches, 1)
	assert.Equal(t, []string{"snapshot@example.com"}, emailService.sentBatches[0][0].To)
}

func submittedRecipient(campaignID uint64, email, providerEmailID string, status entity.RecipientStatus) *entity.Recipient {
	return &entity.Recipient{
		CampaignID:    goutil.Uint64(campaignID),
		Email:         goutil.String(email),
		Status:        status,
		ResendEmailID: goutil.String(providerEmailID),
		SentAt:        goutil.Uint64(uint64(time.Now().Unix())),
	}
}

func TestSyncCampaign_AppliesProviderEvents(t *testing.T) {
	store := newMemStore()
	store.contents[1] = publishedContent()

	campaign := seededCampaign(store, entity.CampaignStatusCompleted)
	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{
		submittedRecipient(campaign.GetID(), "a@example.com", "re_a", entity.RecipientStatusSent),
		submittedRecipient(campaign.GetID(), "b@example.com", "re_b", entity.RecipientStatusSent),
		submittedRecipient(campaign.GetID(), "c@example.com", "re_c", entity.RecipientStatusSent),
	}))

	emailService := newFakeEmailService()
	emailService.listFn = func(call int, limit int, after string) (*dep.ListEmailsResult, error) {
		return &dep.ListEmailsResult{
			Items: []*dep.EmailItem{
				{ID: "re_a", LastEvent: "clicked", CreatedAt: "2024-05-01T10:00:00Z"},
				{ID: "re_b", LastEvent: "bounced", CreatedAt: "2024-05-01T10:01:00Z"},
				{ID: "re_c", LastEvent: "delivered", CreatedAt: "2024-05-01T10:02:00Z"},
			},
		}, nil
	}
	h := newTestDispatchHandler(store, emailService, nil)

	require.NoError(t, h.SyncCampaign(context.Background(), campaign.GetID()))

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)

	assert.Equal(t, entity.RecipientStatusClicked, recipients[0].GetStatus())
	assert.NotZero(t, recipients[0].GetClickedAt())

	assert.Equal(t, entity.RecipientStatusFailed, recipients[1].GetStatus())
	assert.NotZero(t, recipients[1].GetFailedAt())

	assert.Equal(t, entity.RecipientStatusDelivered, recipients[2].GetStatus())
	assert.Equal(t, uint64(1714557720), recipients[2].GetDeliveredAt())

	stored, err := store.campaignRepo().GetByID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSyncedAt)
	assert.Equal(t, uint64(1), *stored.FailedCount)
	assert.Equal(t, uint64(1), *stored.ClickedCount)
}

func TestSyncCampaign_NeverRegresses(t *testing.T) {
	store := newMemStore()

	campaign := seededCampaign(store, entity.CampaignStatusCompleted)

	opened := submittedRecipient(campaign.GetID(), "a@example.com", "re_a", entity.RecipientStatusOpened)
	openedAt := uint64(1714550000)
	opened.OpenedAt = goutil.Uint64(openedAt)
	failed := submittedRecipient(campaign.GetID(), "b@example.com", "re_b", entity.RecipientStatusFailed)
	failedAt := uint64(1714550001)
	failed.FailedAt = goutil.Uint64(failedAt)

	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{opened, failed}))

	emailService := newFakeEmailService()
	emailService.listFn = func(call int, limit int, after string) (*dep.ListEmailsResult, error) {
		return &dep.ListEmailsResult{
			Items: []*dep.EmailItem{
				// a stale "delivered" must not demote an opened recipient
				{ID: "re_a", LastEvent: "delivered", CreatedAt: "2024-05-01T10:00:00Z"},
				// failed recipients never transition again
				{ID: "re_b", LastEvent: "opened", CreatedAt: "2024-05-01T10:01:00Z"},
			},
		}, nil
	}
	h := newTestDispatchHandler(store, emailService, nil)

	require.NoError(t, h.SyncCampaign(context.Background(), campaign.GetID()))

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)

	assert.Equal(t, entity.RecipientStatusOpened, recipients[0].GetStatus())
	assert.Equal(t, openedAt, recipients[0].GetOpenedAt())
	assert.Equal(t, entity.RecipientStatusFailed, recipients[1].GetStatus())
	assert.Equal(t, failedAt, recipients[1].GetFailedAt())
}

func TestSyncCampaign_PagesWithCursor(t *testing.T) {
	store := newMemStore()

	campaign := seededCampaign(store, entity.CampaignStatusCompleted)
	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{
		submittedRecipient(campaign.GetID(), "a@example.com", "re_a", entity.RecipientStatusSent),
		submittedRecipient(campaign.GetID(), "b@example.com", "re_b", entity.RecipientStatusSent),
	}))

	var afters []string
	emailService := newFakeEmailService()
	emailService.listFn = func(call int, limit int, after string) (*dep.ListEmailsResult, error) {
		afters = append(afters, after)
		switch call {
		case 0:
			return &dep.ListEmailsResult{
				Items:   []*dep.EmailItem{{ID: "re_other", LastEvent: "delivered"}, {ID: "re_a", LastEvent: "opened"}},
				HasMore: true,
			}, nil
		default:
			return &dep.ListEmailsResult{
				Items: []*dep.EmailItem{{ID: "re_b", LastEvent: "delivered"}},
			}, nil
		}
	}
	h := newTestDispatchHandler(store, emailService, nil)

	require.NoError(t, h.SyncCampaign(context.Background(), campaign.GetID()))

	// the cursor advances to the last listed id on each page
	assert.Equal(t, []string{"", "re_a"}, afters)
	assert.Equal(t, 2, emailService.listCalls)

	recipients, err := store.recipientRepo().GetAllByCampaignID(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientStatusOpened, recipients[0].GetStatus())
	assert.Equal(t, entity.RecipientStatusDelivered, recipients[1].GetStatus())
}

func TestSyncCampaign_BoundedPages(t *testing.T) {
	store := newMemStore()

	campaign := seededCampaign(store, entity.CampaignStatusCompleted)
	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{
		submittedRecipient(campaign.GetID(), "a@example.com", "re_never", entity.RecipientStatusSent),
	}))

	emailService := newFakeEmailService()
	emailService.listFn = func(call int, limit int, after string) (*dep.ListEmailsResult, error) {
		// endless feed that never mentions our recipient
		return &dep.ListEmailsResult{
			Items:   []*dep.EmailItem{{ID: providerID(call, 0), LastEvent: "delivered"}},
			HasMore: true,
		}, nil
	}

	cfg := testDispatchConfig()
	cfg.Dispatch.SyncMaxPages = 3
	h := newTestDispatchHandler(store, emailService, cfg)

	require.NoError(t, h.SyncCampaign(context.Background(), campaign.GetID()))
	assert.Equal(t, 3, emailService.listCalls)
}

func TestSyncCampaign_ProviderErrorPropagates(t *testing.T) {
	store := newMemStore()

	campaign := seededCampaign(store, entity.CampaignStatusCompleted)
	require.NoError(t, store.recipientRepo().CreateMany(context.Background(), []*entity.Recipient{
		submittedRecipient(campaign.GetID(), "a@example.com", "re_a", entity.RecipientStatusSent),
	}))

	emailService := newFakeEmailService()
	emailService.listFn = func(call int, limit int, after string) (*dep.ListEmailsResult, error) {
		return nil, errors.New("provider down")
	}
	h := newTestDispatchHandler(store, emailService, nil)

	err := h.SyncCampaign(context.Background(), campaign.GetID())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}
