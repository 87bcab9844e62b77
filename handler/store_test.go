package handler

import (
	"campaigner/dep"
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"campaigner/repo"
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the MySQL-backed repos so that
// handler flows can be exercised end to end without a database. The
// repo interfaces are served by thin views over the shared store.
type memStore struct {
	mu sync.Mutex

	campaigns  map[uint64]*entity.Campaign
	recipients map[uint64]*entity.Recipient
	batches    map[uint64]*entity.Batch
	contents   map[uint64]entity.ContentItem

	staff      []*entity.Recipient
	newsletter []*entity.Recipient
	paid       []*entity.Recipient

	nextCampaignID  uint64
	nextRecipientID uint64
	nextBatchID     uint64
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[uint64]*entity.Campaign),
		recipients: make(map[uint64]*entity.Recipient),
		batches:    make(map[uint64]*entity.Batch),
		contents:   make(map[uint64]entity.ContentItem),
	}
}

func (s *memStore) campaignRepo() repo.CampaignRepo   { return campaignStore{s} }
func (s *memStore) recipientRepo() repo.RecipientRepo { return recipientStore{s} }
func (s *memStore) batchRepo() repo.BatchRepo         { return batchStore{s} }
func (s *memStore) contentRepo() repo.ContentRepo     { return contentStore{s} }
func (s *memStore) audienceRepo() repo.AudienceRepo   { return audienceStore{s} }

func (s *memStore) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ repo.TxService = (*memStore)(nil)

type campaignStore struct{ s *memStore }

func (cs campaignStore) Create(_ context.Context, campaign *entity.Campaign) (uint64, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	cs.s.nextCampaignID++
	campaign.ID = goutil.Uint64(cs.s.nextCampaignID)
	cs.s.campaigns[cs.s.nextCampaignID] = campaign

	return cs.s.nextCampaignID, nil
}

func (cs campaignStore) GetByID(_ context.Context, id uint64) (*entity.Campaign, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	campaign, ok := cs.s.campaigns[id]
	if !ok {
		return nil, repo.ErrCampaignNotFound
	}

	clone := *campaign
	return &clone, nil
}

func (cs campaignStore) GetByIDAndContentID(ctx context.Context, id, contentID uint64) (*entity.Campaign, error) {
	campaign, err := cs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.GetContentID() != contentID {
		return nil, repo.ErrCampaignNotFound
	}
	return campaign, nil
}

func (cs campaignStore) GetManyByContentID(_ context.Context, contentID uint64, p *entity.Pagination) ([]*entity.Campaign, *entity.Pagination, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	campaigns := make([]*entity.Campaign, 0)
	for id := uint64(1); id <= cs.s.nextCampaignID; id++ {
		campaign, ok := cs.s.campaigns[id]
		if !ok || campaign.GetContentID() != contentID {
			continue
		}
		clone := *campaign
		campaigns = append(campaigns, &clone)
	}

	return campaigns, &entity.Pagination{
		Page:    goutil.Uint32(1),
		HasNext: goutil.Bool(false),
		Total:   goutil.Uint32(uint32(len(campaigns))),
	}, nil
}

func (cs campaignStore) GetDueScheduled(_ context.Context, dueAt uint64) ([]*entity.Campaign, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	campaigns := make([]*entity.Campaign, 0)
	for _, campaign := range cs.s.campaigns {
		if campaign.GetStatus() == entity.CampaignStatusScheduled && campaign.GetScheduledFor() > 0 && campaign.GetScheduledFor() <= dueAt {
			clone := *campaign
			campaigns = append(campaigns, &clone)
		}
	}

	return campaigns, nil
}

func (cs campaignStore) GetSyncCandidates(_ context.Context, limit int) ([]*entity.Campaign, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	campaigns := make([]*entity.Campaign, 0)
	for _, campaign := range cs.s.campaigns {
		status := campaign.GetStatus()
		if status != entity.CampaignStatusRunning && status != entity.CampaignStatusCompleted {
			continue
		}
		clone := *campaign
		campaigns = append(campaigns, &clone)
		if len(campaigns) == limit {
			break
		}
	}

	return campaigns, nil
}

func (cs campaignStore) Update(_ context.Context, campaign *entity.Campaign) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	stored, ok := cs.s.campaigns[campaign.GetID()]
	if !ok {
		return repo.ErrCampaignNotFound
	}
	stored.Update(campaign)

	return nil
}

func (cs campaignStore) UpdateByStatus(_ context.Context, id uint64, from entity.CampaignStatus, delta *entity.Campaign) (bool, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	stored, ok := cs.s.campaigns[id]
	if !ok || stored.GetStatus() != from {
		return false, nil
	}
	stored.Update(delta)

	return true, nil
}

func (cs campaignStore) UpdateAggregates(_ context.Context, id uint64) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	stored, ok := cs.s.campaigns[id]
	if !ok {
		return repo.ErrCampaignNotFound
	}

	var recipientCount, sentCount, deliveredCount, openedCount, clickedCount, failedCount uint64
	for _, recipient := range cs.s.recipients {
		if recipient.GetCampaignID() != id {
			continue
		}
		recipientCount++

		switch recipient.GetStatus() {
		case entity.RecipientStatusSent:
			sentCount++
		case entity.RecipientStatusDelivered:
			sentCount++
			deliveredCount++
		case entity.RecipientStatusOpened:
			sentCount++
			deliveredCount++
			openedCount++
		case entity.RecipientStatusClicked:
			sentCount++
			deliveredCount++
			openedCount++
			clickedCount++
		case entity.RecipientStatusFailed:
			failedCount++
		}
	}

	var progressPct float64
	if recipientCount > 0 {
		progressPct = math.Round(float64(sentCount+failedCount)/float64(recipientCount)*10000) / 100
	}

	stored.Update(&entity.Campaign{
		RecipientCount: goutil.Uint64(recipientCount),
		SentCount:      goutil.Uint64(sentCount),
		DeliveredCount: goutil.Uint64(deliveredCount),
		OpenedCount:    goutil.Uint64(openedCount),
		ClickedCount:   goutil.Uint64(clickedCount),
		FailedCount:    goutil.Uint64(failedCount),
		ProgressPct:    goutil.Float64(progressPct),
	})

	return nil
}

type recipientStore struct{ s *memStore }

func (rs recipientStore) CreateMany(_ context.Context, recipients []*entity.Recipient) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	for _, recipient := range recipients {
		rs.s.nextRecipientID++
		recipient.ID = goutil.Uint64(rs.s.nextRecipientID)
		clone := *recipient
		rs.s.recipients[rs.s.nextRecipientID] = &clone
	}

	return nil
}

func (rs recipientStore) CountByCampaignID(_ context.Context, campaignID uint64) (uint64, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	var count uint64
	for _, recipient := range rs.s.recipients {
		if recipient.GetCampaignID() == campaignID {
			count++
		}
	}

	return count, nil
}

func (rs recipientStore) GetAllByCampaignID(_ context.Context, campaignID uint64) ([]*entity.Recipient, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	recipients := make([]*entity.Recipient, 0)
	for id := uint64(1); id <= rs.s.nextRecipientID; id++ {
		recipient, ok := rs.s.recipients[id]
		if !ok || recipient.GetCampaignID() != campaignID {
			continue
		}
		clone := *recipient
		recipients = append(recipients, &clone)
	}

	return recipients, nil
}

func (rs recipientStore) GetManyByCampaignID(ctx context.Context, campaignID uint64, p *entity.Pagination) ([]*entity.Recipient, *entity.Pagination, error) {
	recipients, err := rs.GetAllByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}

	return recipients, &entity.Pagination{
		Page:    goutil.Uint32(1),
		HasNext: goutil.Bool(false),
		Total:   goutil.Uint32(uint32(len(recipients))),
	}, nil
}

func (rs recipientStore) GetSubmittedByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Recipient, error) {
	recipients, err := rs.GetAllByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	submitted := make([]*entity.Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.GetResendEmailID() != "" {
			submitted = append(submitted, recipient)
		}
	}

	return submitted, nil
}

func (rs recipientStore) Update(_ context.Context, recipient *entity.Recipient) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	return rs.s.applyRecipientDelta(recipient.GetID(), recipient)
}

func (rs recipientStore) UpdateMany(_ context.Context, ids []uint64, delta *entity.Recipient) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	for _, id := range ids {
		if err := rs.s.applyRecipientDelta(id, delta); err != nil {
			return err
		}
	}

	return nil
}

func (s *memStore) applyRecipientDelta(id uint64, delta *entity.Recipient) error {
	stored, ok := s.recipients[id]
	if !ok {
		return repo.ErrRecipientNotFound
	}

	if delta.Status != entity.RecipientStatusUnknown {
		stored.Status = delta.Status
	}
	if delta.BatchID != nil {
		stored.BatchID = delta.BatchID
	}
	if delta.ResendEmailID != nil {
		stored.ResendEmailID = delta.ResendEmailID
	}
	if delta.LastError != nil {
		stored.LastError = delta.LastError
	}
	if delta.SentAt != nil {
		stored.SentAt = delta.SentAt
	}
	if delta.DeliveredAt != nil {
		stored.DeliveredAt = delta.DeliveredAt
	}
	if delta.OpenedAt != nil {
		stored.OpenedAt = delta.OpenedAt
	}
	if delta.ClickedAt != nil {
		stored.ClickedAt = delta.ClickedAt
	}
	if delta.FailedAt != nil {
		stored.FailedAt = delta.FailedAt
	}

	return nil
}

type batchStore struct{ s *memStore }

func (bs batchStore) Create(_ context.Context, batch *entity.Batch) (uint64, error) {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	bs.s.nextBatchID++
	batch.ID = goutil.Uint64(bs.s.nextBatchID)
	clone := *batch
	bs.s.batches[bs.s.nextBatchID] = &clone

	return bs.s.nextBatchID, nil
}

func (bs batchStore) Update(_ context.Context, batch *entity.Batch) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	clone := *batch
	bs.s.batches[batch.GetID()] = &clone

	return nil
}

func (bs batchStore) GetAllByCampaignID(_ context.Context, campaignID uint64) ([]*entity.Batch, error) {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	batches := make([]*entity.Batch, 0)
	for id := uint64(1); id <= bs.s.nextBatchID; id++ {
		batch, ok := bs.s.batches[id]
		if !ok || batch.GetCampaignID() != campaignID {
			continue
		}
		clone := *batch
		batches = append(batches, &clone)
	}

	return batches, nil
}

type contentStore struct{ s *memStore }

func (cs contentStore) GetByID(_ context.Context, id uint64) (entity.ContentItem, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	content, ok := cs.s.contents[id]
	if !ok {
		return entity.ContentItem{}, repo.ErrContentNotFound
	}

	return content, nil
}

type audienceStore struct{ s *memStore }

func (as audienceStore) GetActiveStaff(_ context.Context) ([]*entity.Recipient, error) {
	return cloneRecipients(as.s.staff), nil
}

func (as audienceStore) GetNewsletterMembers(_ context.Context) ([]*entity.Recipient, error) {
	return cloneRecipients(as.s.newsletter), nil
}

func (as audienceStore) GetPaidMembers(_ context.Context) ([]*entity.Recipient, error) {
	return cloneRecipients(as.s.paid), nil
}

func cloneRecipients(recipients []*entity.Recipient) []*entity.Recipient {
	out := make([]*entity.Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		clone := *recipient
		out = append(out, &clone)
	}
	return out
}

// fakeEmailService records calls and plays back scripted responses.
type fakeEmailService struct {
	mu sync.Mutex

	from    string
	replyTo string

	sendFn func(call int, messages []*dep.Message) ([]*dep.BatchResult, error)
	listFn func(call int, limit int, after string) (*dep.ListEmailsResult, error)

	sendCalls       int
	listCalls       int
	idempotencyKeys []string
	sentBatches     [][]*dep.Message
}

var _ dep.EmailService = (*fakeEmailService)(nil)

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{from: "news@example.com"}
}

func (s *fakeEmailService) SendBatch(_ context.Context, messages []*dep.Message, idempotencyKey string) ([]*dep.BatchResult, error) {
	s.mu.Lock()
	call := s.sendCalls
	s.sendCalls++
	s.idempotencyKeys = append(s.idempotencyKeys, idempotencyKey)
	s.sentBatches = append(s.sentBatches, messages)
	s.mu.Unlock()

	if s.sendFn != nil {
		return s.sendFn(call, messages)
	}

	results := make([]*dep.BatchResult, 0, len(messages))
	for i := range messages {
		results = append(results, &dep.BatchResult{ID: providerID(call, i)})
	}
	return results, nil
}

func providerID(call, idx int) string {
	return fmt.Sprintf("re_%d_%d", call, idx)
}

func (s *fakeEmailService) ListEmails(_ context.Context, limit int, after string) (*dep.ListEmailsResult, error) {
	s.mu.Lock()
	call := s.listCalls
	s.listCalls++
	s.mu.Unlock()

	if s.listFn != nil {
		return s.listFn(call, limit, after)
	}
	return &dep.ListEmailsResult{}, nil
}

func (s *fakeEmailService) From() string    { return s.from }
func (s *fakeEmailService) ReplyTo() string { return s.replyTo }

func (s *fakeEmailService) Close(_ context.Context) error {
	return nil
}

func testRecipient(email, name string) *entity.Recipient {
	return &entity.Recipient{
		Email:         goutil.String(email),
		Name:          goutil.String(name),
		RecipientType: entity.RecipientTypeMember,
	}
}

func publishedContent() entity.ContentItem {
	return entity.ContentItem{
		ID:     1,
		Title:  "Weekly Digest",
		Status: entity.ContentStatusPublished,
		Html:   "<p>hello</p>",
	}
}

const testToken = "0123456789abcdef0123456789abcdef0123456789abcdef"

func seededCampaign(s *memStore, status entity.CampaignStatus) *entity.Campaign {
	now := uint64(time.Now().Unix())
	campaign := &entity.Campaign{
		ContentID:             goutil.Uint64(1),
		Audience:              entity.AudienceNewsletterMembers,
		Status:                status,
		ConfirmationToken:     goutil.String(testToken),
		ConfirmationExpiresAt: goutil.Uint64(now + 900),
		CreateTime:            goutil.Uint64(now),
		UpdateTime:            goutil.Uint64(now),
	}
	_, _ = s.campaignRepo().Create(context.Background(), campaign)
	return campaign
}
