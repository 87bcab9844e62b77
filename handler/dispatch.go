package handler

import (
	"campaigner/config"
	"campaigner/dep"
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"campaigner/pkg/mq"
	"campaigner/repo"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const missingProviderIDErr = "missing resend email id in batch response"

var (
	ErrContentNotPublished   = errors.New("campaigns can only be sent after the content is published")
	ErrNoRecipientsAtSend    = errors.New("no eligible recipients at send time")
	errCampaignAlreadyRunned = errors.New("campaign run already in flight")
)

// EmailServiceFn builds a provider client per run so that configuration
// errors surface at dispatch time, not at process start.
type EmailServiceFn func(ctx context.Context) (dep.EmailService, error)

type DispatchHandler interface {
	// RunCampaign executes one campaign run to completion. Every failure
	// inside the run is absorbed into persisted campaign state; the run
	// never panics past this boundary and duplicate invocations no-op.
	RunCampaign(ctx context.Context, campaignID uint64) error
	// RunCampaignAsync fires a run on a detached context, for triggers that
	// must not block (confirmation, scheduler).
	RunCampaignAsync(ctx context.Context, campaignID uint64)
	// SyncCampaign reconciles recipient delivery state against the
	// provider's event listing. Provider failures propagate to the caller.
	SyncCampaign(ctx context.Context, campaignID uint64) error
}

type dispatchHandler struct {
	cfg            *config.Config
	txService      repo.TxService
	campaignRepo   repo.CampaignRepo
	batchRepo      repo.BatchRepo
	recipientRepo  repo.RecipientRepo
	contentRepo    repo.ContentRepo
	audience       AudienceHandler
	emailServiceFn EmailServiceFn
	producer       *mq.Producer

	// one logical worker per campaign within this process
	inFlight sync.Map
}

func NewDispatchHandler(
	cfg *config.Config,
	txService repo.TxService,
	campaignRepo repo.CampaignRepo,
	batchRepo repo.BatchRepo,
	recipientRepo repo.RecipientRepo,
	contentRepo repo.ContentRepo,
	audience AudienceHandler,
	emailServiceFn EmailServiceFn,
	producer *mq.Producer,
) DispatchHandler {
	return &dispatchHandler{
		cfg:            cfg,
		txService:      txService,
		campaignRepo:   campaignRepo,
		batchRepo:      batchRepo,
		recipientRepo:  recipientRepo,
		contentRepo:    contentRepo,
		audience:       audience,
		emailServiceFn: emailServiceFn,
		producer:       producer,
	}
}

func batchIdempotencyKey(campaignID, batchIndex uint64) string {
	return fmt.Sprintf("campaign-%d-batch-%d", campaignID, batchIndex)
}

func (h *dispatchHandler) RunCampaignAsync(ctx context.Context, campaignID uint64) {
	// detach from the request lifetime, keep the logger
	runCtx := log.Ctx(ctx).WithContext(context.Background())

	go func() {
		if err := h.RunCampaign(runCtx, campaignID); err != nil {
			log.Ctx(runCtx).Error().Msgf("[campaign ID %d] async run failed: %v", campaignID, err)
		}
	}()
}

func (h *dispatchHandler) RunCampaign(ctx context.Context, campaignID uint64) error {
	if _, loaded := h.inFlight.LoadOrStore(campaignID, struct{}{}); loaded {
		log.Ctx(ctx).Info().Msgf("[campaign ID %d] %v, skipping", campaignID, errCampaignAlreadyRunned)
		return nil
	}
	defer h.inFlight.Delete(campaignID)

	campaign, err := h.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			log.Ctx(ctx).Warn().Msgf("[campaign ID %d] not found, skipping run", campaignID)
			return nil
		}
		return err
	}

	// stale or duplicate triggers are no-ops
	if campaign.GetStatus() != entity.CampaignStatusRunning {
		log.Ctx(ctx).Info().Msgf("[campaign ID %d] not running (status %v), skipping run", campaignID, campaign.GetStatus())
		return nil
	}

	if err := h.runCampaign(ctx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] run failed: %v", campaignID, err)

		campaign.Update(&entity.Campaign{
			Status:      entity.CampaignStatusFailed,
			Error:       goutil.String(err.Error()),
			CompletedAt: goutil.Uint64(uint64(time.Now().Unix())),
		})
		if updateErr := h.campaignRepo.Update(ctx, campaign); updateErr != nil {
			log.Ctx(ctx).Error().Msgf("[campaign ID %d] set campaign to failed failed: %v", campaignID, updateErr)
		}

		h.publishEvent(ctx, campaignID, nil, "campaign_failed", err.Error())
	}

	return nil
}

func (h *dispatchHandler) runCampaign(ctx context.Context, campaign *entity.Campaign) error {
	var campaignID = campaign.GetID()

	content, err := h.contentRepo.GetByID(ctx, campaign.GetContentID())
	if err != nil {
		return fmt.Errorf("get content failed: %v", err)
	}
	if !content.IsPublished() {
		return ErrContentNotPublished
	}

	emailService, err := h.emailServiceFn(ctx)
	if err != nil {
		return err
	}

	recipients, err := h.recipientRepo.GetAllByCampaignID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("get recipients failed: %v", err)
	}

	// lazy materialization, makes the run resumable after a crash between
	// confirmation and first batch
	if len(recipients) == 0 {
		if err := h.materializeRecipients(ctx, campaign); err != nil {
			return err
		}

		recipients, err = h.recipientRepo.GetAllByCampaignID(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("get recipients failed: %v", err)
		}
	}

	batchSize := h.cfg.Dispatch.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	chunks := chunkRecipients(recipients, batchSize)

	for i, chunk := range chunks {
		h.submitBatch(ctx, campaign, content, emailService, uint64(i), chunk)

		if err := h.campaignRepo.UpdateAggregates(ctx, campaignID); err != nil {
			log.Ctx(ctx).Error().Msgf("[campaign ID %d] update aggregates failed: %v", campaignID, err)
		}

		// fixed pause between batches, the provider rate limit is the only
		// shared resource; never after the last batch
		if i != len(chunks)-1 {
			delay := time.Duration(h.cfg.Dispatch.BatchDelayMs) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := h.campaignRepo.UpdateAggregates(ctx, campaignID); err != nil {
		return fmt.Errorf("update aggregates failed: %v", err)
	}

	// batch-level failure is recorded in counts, not in the terminal state
	campaign.Update(&entity.Campaign{
		Status:      entity.CampaignStatusCompleted,
		ProgressPct: goutil.Float64(100),
		CompletedAt: goutil.Uint64(uint64(time.Now().Unix())),
	})
	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		return fmt.Errorf("set campaign to completed failed: %v", err)
	}

	h.publishEvent(ctx, campaignID, nil, "campaign_completed", "")

	return nil
}

func (h *dispatchHandler) materializeRecipients(ctx context.Context, campaign *entity.Campaign) error {
	var campaignID = campaign.GetID()

	sourceRecipients, err := h.audience.Resolve(ctx, campaign.GetAudience())
	if err != nil {
		return fmt.Errorf("resolve audience failed: %v", err)
	}
	if len(sourceRecipients) == 0 {
		return ErrNoRecipientsAtSend
	}

	return h.txService.RunTx(ctx, func(ctx context.Context) error {
		// a concurrent run or a crash-resume may have inserted already
		count, err := h.recipientRepo.CountByCampaignID(ctx, campaignID)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := uint64(time.Now().Unix())
		for _, recipient := range sourceRecipients {
			recipient.CampaignID = goutil.Uint64(campaignID)
			recipient.Status = entity.RecipientStatusPending
			recipient.CreateTime = goutil.Uint64(now)
			recipient.UpdateTime = goutil.Uint64(now)
		}

		if err := h.recipientRepo.CreateMany(ctx, sourceRecipients); err != nil {
			return fmt.Errorf("insert recipients failed: %v", err)
		}

		delta := &entity.Campaign{
			RecipientCount: goutil.Uint64(uint64(len(sourceRecipients))),
		}
		if campaign.GetStartedAt() == 0 {
			delta.StartedAt = goutil.Uint64(now)
		}
		campaign.Update(delta)

		return h.campaignRepo.Update(ctx, campaign)
	})
}

func (h *dispatchHandler) submitBatch(
	ctx context.Context,
	campaign *entity.Campaign,
	content entity.ContentItem,
	emailService dep.EmailService,
	batchIndex uint64,
	chunk []*entity.Recipient,
) {
	var (
		campaignID = campaign.GetID()
		nowTime    = uint64(time.Now().Unix())
		batch      = &entity.Batch{
			CampaignID:     goutil.Uint64(campaignID),
			BatchIndex:     goutil.Uint64(batchIndex),
			Status:         entity.BatchStatusSubmitting,
			RecipientCount: goutil.Uint64(uint64(len(chunk))),
			SentCount:      goutil.Uint64(0),
			FailedCount:    goutil.Uint64(0),
			CreateTime:     goutil.Uint64(nowTime),
			UpdateTime:     goutil.Uint64(nowTime),
		}
	)

	batchID, err := h.batchRepo.Create(ctx, batch)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] create batch %d failed: %v", campaignID, batchIndex, err)
		h.failBatch(ctx, batch, chunk, fmt.Sprintf("create batch failed: %v", err))
		return
	}

	messages := make([]*dep.Message, 0, len(chunk))
	for _, recipient := range chunk {
		messages = append(messages, &dep.Message{
			From:    emailService.From(),
			To:      []string{recipient.GetEmail()},
			Subject: content.SubjectLine(),
			Html:    content.HtmlBody(),
			Text:    content.TextBody(),
			ReplyTo: emailService.ReplyTo(),
			Tags: []dep.Tag{
				{Name: "campaign_id", Value: fmt.Sprint(campaignID)},
				{Name: "recipient_id", Value: fmt.Sprint(recipient.GetID())},
			},
		})
	}

	results, err := emailService.SendBatch(ctx, messages, batchIdempotencyKey(campaignID, batchIndex))
	if err != nil {
		// batch granularity: mark everything failed, keep the run going
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] submit batch %d failed: %v", campaignID, batchIndex, err)
		h.failBatch(ctx, batch, chunk, err.Error())
		return
	}

	var sentCount uint64
	submittedAt := uint64(time.Now().Unix())

	for idx, recipient := range chunk {
		var providerID string
		if idx < len(results) && results[idx] != nil {
			providerID = results[idx].ID
		}

		delta := &entity.Recipient{
			ID:      recipient.ID,
			BatchID: goutil.Uint64(batchID),
		}
		if providerID != "" {
			sentCount++
			delta.Status = entity.RecipientStatusSent
			delta.ResendEmailID = goutil.String(providerID)
			delta.SentAt = goutil.Uint64(submittedAt)
		} else {
			delta.Status = entity.RecipientStatusFailed
			delta.FailedAt = goutil.Uint64(submittedAt)
			delta.LastError = goutil.String(missingProviderIDErr)
		}

		if err := h.recipientRepo.Update(ctx, delta); err != nil {
			log.Ctx(ctx).Error().Msgf("[campaign ID %d] update recipient %d failed: %v", campaignID, recipient.GetID(), err)
		}
	}

	batchStatus := entity.BatchStatusSubmitted
	if sentCount != uint64(len(chunk)) {
		batchStatus = entity.BatchStatusFailed
	}

	batch.Status = batchStatus
	batch.SentCount = goutil.Uint64(sentCount)
	batch.FailedCount = goutil.Uint64(uint64(len(chunk)) - sentCount)
	batch.SubmittedAt = goutil.Uint64(submittedAt)
	if err := h.batchRepo.Update(ctx, batch); err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] finalize batch %d failed: %v", campaignID, batchIndex, err)
	}

	h.publishEvent(ctx, campaignID, nil, "batch_"+batchStatus.String(), batchIdempotencyKey(campaignID, batchIndex))
}

// failBatch marks every recipient in the chunk and the batch itself failed
// with the same error. The run proceeds to the next batch.
func (h *dispatchHandler) failBatch(ctx context.Context, batch *entity.Batch, chunk []*entity.Recipient, errText string) {
	var (
		failedAt = uint64(time.Now().Unix())
		ids      = make([]uint64, 0, len(chunk))
	)
	for _, recipient := range chunk {
		ids = append(ids, recipient.GetID())
	}

	recipientDelta := &entity.Recipient{
		Status:    entity.RecipientStatusFailed,
		FailedAt:  goutil.Uint64(failedAt),
		LastError: goutil.String(errText),
	}
	if batch.GetID() > 0 {
		recipientDelta.BatchID = goutil.Uint64(batch.GetID())
	}

	if err := h.recipientRepo.UpdateMany(ctx, ids, recipientDelta); err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] fail batch recipients failed: %v", batch.GetCampaignID(), err)
	}

	if batch.GetID() > 0 {
		batch.Status = entity.BatchStatusFailed
		batch.SentCount = goutil.Uint64(0)
		batch.FailedCount = goutil.Uint64(uint64(len(chunk)))
		batch.Error = goutil.String(errText)
		if err := h.batchRepo.Update(ctx, batch); err != nil {
			log.Ctx(ctx).Error().Msgf("[campaign ID %d] finalize failed batch failed: %v", batch.GetCampaignID(), err)
		}
	}

	h.publishEvent(ctx, batch.GetCampaignID(), nil, "batch_failed", errText)
}

func toRecipientStatus(lastEvent string) entity.RecipientStatus {
	switch lastEvent {
	case "clicked":
		return entity.RecipientStatusClicked
	case "opened":
		return entity.RecipientStatusOpened
	case "delivered":
		return entity.RecipientStatusDelivered
	case "bounced", "complained":
		return entity.RecipientStatusFailed
	default:
		return entity.RecipientStatusSent
	}
}

func (h *dispatchHandler) SyncCampaign(ctx context.Context, campaignID uint64) error {
	emailService, err := h.emailServiceFn(ctx)
	if err != nil {
		return err
	}

	recipients, err := h.recipientRepo.GetSubmittedByCampaignID(ctx, campaignID)
	if err != nil {
		return err
	}

	pending := make(map[string]*entity.Recipient, len(recipients))
	for _, recipient := range recipients {
		if id := recipient.GetResendEmailID(); id != "" {
			pending[id] = recipient
		}
	}

	var (
		after    string
		hasMore  = true
		maxPages = h.cfg.Dispatch.SyncMaxPages
		pageSize = h.cfg.Dispatch.SyncPageSize
	)
	if maxPages <= 0 {
		maxPages = 30
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	// bounded paging guards against a misbehaving provider cursor
	for page := 0; hasMore && len(pending) > 0 && page < maxPages; page++ {
		res, err := emailService.ListEmails(ctx, pageSize, after)
		if err != nil {
			return err
		}
		if len(res.Items) == 0 {
			break
		}

		for _, item := range res.Items {
			recipient, ok := pending[item.ID]
			if !ok {
				continue
			}

			h.applyProviderEvent(ctx, recipient, item)

			delete(pending, item.ID)
		}

		hasMore = res.HasMore
		after = res.Items[len(res.Items)-1].ID
	}

	if err := h.campaignRepo.UpdateAggregates(ctx, campaignID); err != nil {
		return err
	}

	campaign := &entity.Campaign{
		ID:           goutil.Uint64(campaignID),
		LastSyncedAt: goutil.Uint64(uint64(time.Now().Unix())),
	}
	return h.campaignRepo.Update(ctx, campaign)
}

func (h *dispatchHandler) applyProviderEvent(ctx context.Context, recipient *entity.Recipient, item *dep.EmailItem) {
	mapped := toRecipientStatus(item.LastEvent)

	if !recipient.GetStatus().CanTransitionTo(mapped) {
		return
	}

	occurredAt := parseProviderTime(item.CreatedAt)

	delta := &entity.Recipient{
		ID:     recipient.ID,
		Status: mapped,
	}

	// first occurrence wins; an already-set timestamp is never overwritten
	switch mapped {
	case entity.RecipientStatusDelivered:
		if recipient.GetDeliveredAt() == 0 {
			delta.DeliveredAt = goutil.Uint64(occurredAt)
		}
	case entity.RecipientStatusOpened:
		if recipient.GetOpenedAt() == 0 {
			delta.OpenedAt = goutil.Uint64(occurredAt)
		}
	case entity.RecipientStatusClicked:
		if recipient.GetClickedAt() == 0 {
			delta.ClickedAt = goutil.Uint64(occurredAt)
		}
	case entity.RecipientStatusFailed:
		if recipient.GetFailedAt() == 0 {
			delta.FailedAt = goutil.Uint64(uint64(time.Now().Unix()))
		}
	}

	if err := h.recipientRepo.Update(ctx, delta); err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] sync update recipient %d failed: %v", recipient.GetCampaignID(), recipient.GetID(), err)
		return
	}

	h.publishEvent(ctx, recipient.GetCampaignID(), recipient.ID, "recipient_"+mapped.String(), item.LastEvent)
}

func parseProviderTime(s string) uint64 {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return uint64(t.Unix())
		}
	}
	return uint64(time.Now().Unix())
}

func (h *dispatchHandler) publishEvent(ctx context.Context, campaignID uint64, recipientID *uint64, eventType, payload string) {
	if h.producer == nil {
		return
	}

	event := &mq.CampaignEvent{
		CampaignID: goutil.Uint64(campaignID),
		EventType:  goutil.String(eventType),
		OccurredAt: goutil.Int64(time.Now().Unix()),
	}
	if recipientID != nil {
		event.RecipientID = recipientID
	}
	if payload != "" {
		event.Payload = goutil.String(payload)
	}

	if err := h.producer.SendMessage(&mq.Message{
		Payload: mq.PayloadCampaignEvent,
		Key:     fmt.Sprint(campaignID),
		Body:    event,
	}); err != nil {
		log.Ctx(ctx).Error().Msgf("[campaign ID %d] publish %s event failed: %v", campaignID, eventType, err)
	}
}

func chunkRecipients(recipients []*entity.Recipient, size int) [][]*entity.Recipient {
	chunks := make([][]*entity.Recipient, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		chunks = append(chunks, recipients[start:end])
	}
	return chunks
}
