package repo

import (
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
)

var ErrCampaignNotFound = errors.New("campaign not found")

type Campaign struct {
	ID                      *uint64
	ContentID               *uint64
	CreatedByID             *uint64
	Audience                *uint32
	Status                  *uint32
	EstimatedRecipientCount *uint64
	RecipientCount          *uint64
	SentCount               *uint64
	DeliveredCount          *uint64
	OpenedCount             *uint64
	ClickedCount            *uint64
	FailedCount             *uint64
	ProgressPct             *float64
	AvgReadDurationMs       *uint64
	ConfirmationToken       *string
	ConfirmationExpiresAt   *uint64
	ConfirmedAt             *uint64
	ScheduledFor            *uint64
	LastSyncedAt            *uint64
	StartedAt               *uint64
	CompletedAt             *uint64
	Error                   *string
	CreateTime              *uint64
	UpdateTime              *uint64
}

func (m *Campaign) TableName() string {
	return "campaign_tab"
}

func (m *Campaign) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type CampaignRepo interface {
	Create(ctx context.Context, campaign *entity.Campaign) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*entity.Campaign, error)
	GetByIDAndContentID(ctx context.Context, id, contentID uint64) (*entity.Campaign, error)
	GetManyByContentID(ctx context.Context, contentID uint64, p *entity.Pagination) ([]*entity.Campaign, *entity.Pagination, error)
	GetDueScheduled(ctx context.Context, dueAt uint64) ([]*entity.Campaign, error)
	// GetSyncCandidates returns campaigns with submitted mail that may still
	// receive provider events, least recently synced first.
	GetSyncCandidates(ctx context.Context, limit int) ([]*entity.Campaign, error)
	Update(ctx context.Context, campaign *entity.Campaign) error
	// UpdateByStatus applies delta only if the campaign is still in the given
	// status. Returns false when another writer won the transition.
	UpdateByStatus(ctx context.Context, id uint64, from entity.CampaignStatus, delta *entity.Campaign) (bool, error)
	// UpdateAggregates recomputes the rollup counters and progress_pct from
	// the current recipient status counts. Safe to call at any time.
	UpdateAggregates(ctx context.Context, id uint64) error
}

type campaignRepo struct {
	baseRepo BaseRepo
}

func NewCampaignRepo(_ context.Context, baseRepo BaseRepo) CampaignRepo {
	return &campaignRepo{baseRepo: baseRepo}
}

func (r *campaignRepo) Create(ctx context.Context, campaign *entity.Campaign) (uint64, error) {
	campaignModel := ToCampaignModel(campaign)
	if err := r.baseRepo.DB(ctx).Create(campaignModel).Error; err != nil {
		return 0, err
	}

	campaign.ID = campaignModel.ID

	return campaignModel.GetID(), nil
}

func (r *campaignRepo) GetByID(ctx context.Context, id uint64) (*entity.Campaign, error) {
	campaignModel := new(Campaign)
	if err := r.baseRepo.DB(ctx).Where("id = ?", id).First(campaignModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	return ToCampaign(campaignModel), nil
}

func (r *campaignRepo) GetByIDAndContentID(ctx context.Context, id, contentID uint64) (*entity.Campaign, error) {
	campaignModel := new(Campaign)
	if err := r.baseRepo.DB(ctx).Where("id = ? AND content_id = ?", id, contentID).First(campaignModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	return ToCampaign(campaignModel), nil
}

func (r *campaignRepo) GetManyByContentID(ctx context.Context, contentID uint64, p *entity.Pagination) ([]*entity.Campaign, *entity.Pagination, error) {
	var (
		db    = r.baseRepo.DB(ctx)
		limit = p.GetLimit()
		page  = p.GetPage()
	)
	if limit == 0 {
		limit = 20
	}

	var count int64
	if err := db.Model(new(Campaign)).Where("content_id = ?", contentID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	campaignModels := make([]*Campaign, 0)
	if err := db.
		Where("content_id = ?", contentID).
		Order("create_time DESC, id DESC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit + 1)).
		Find(&campaignModels).Error; err != nil {
		return nil, nil, err
	}

	var hasNext bool
	if len(campaignModels) > int(limit) {
		hasNext = true
		campaignModels = campaignModels[:limit]
	}

	campaigns := make([]*entity.Campaign, 0, len(campaignModels))
	for _, campaignModel := range campaignModels {
		campaigns = append(campaigns, ToCampaign(campaignModel))
	}

	return campaigns, &entity.Pagination{
		Page:    goutil.Uint32(page),
		Limit:   goutil.Uint32(limit),
		HasNext: goutil.Bool(hasNext),
		Total:   goutil.Uint32(uint32(count)),
	}, nil
}

func (r *campaignRepo) GetDueScheduled(ctx context.Context, dueAt uint64) ([]*entity.Campaign, error) {
	campaignModels := make([]*Campaign, 0)
	if err := r.baseRepo.DB(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", uint32(entity.CampaignStatusScheduled), dueAt).
		Find(&campaignModels).Error; err != nil {
		return nil, err
	}

	campaigns := make([]*entity.Campaign, 0, len(campaignModels))
	for _, campaignModel := range campaignModels {
		campaigns = append(campaigns, ToCampaign(campaignModel))
	}

	return campaigns, nil
}

func (r *campaignRepo) GetSyncCandidates(ctx context.Context, limit int) ([]*entity.Campaign, error) {
	campaignModels := make([]*Campaign, 0)
	if err := r.baseRepo.DB(ctx).
		Where("status IN ?", []uint32{
			uint32(entity.CampaignStatusRunning),
			uint32(entity.CampaignStatusCompleted),
		}).
		Order("last_synced_at IS NULL DESC, last_synced_at ASC").
		Limit(limit).
		Find(&campaignModels).Error; err != nil {
		return nil, err
	}

	campaigns := make([]*entity.Campaign, 0, len(campaignModels))
	for _, campaignModel := range campaignModels {
		campaigns = append(campaigns, ToCampaign(campaignModel))
	}

	return campaigns, nil
}

func (r *campaignRepo) Update(ctx context.Context, campaign *entity.Campaign) error {
	campaignModel := ToCampaignModel(campaign)
	campaignModel.UpdateTime = goutil.Uint64(now())

	return r.baseRepo.DB(ctx).
		Model(new(Campaign)).
		Where("id = ?", campaign.GetID()).
		Updates(campaignModel).Error
}

func (r *campaignRepo) UpdateByStatus(ctx context.Context, id uint64, from entity.CampaignStatus, delta *entity.Campaign) (bool, error) {
	campaignModel := ToCampaignModel(delta)
	campaignModel.ID = nil
	campaignModel.UpdateTime = goutil.Uint64(now())

	res := r.baseRepo.DB(ctx).
		Model(new(Campaign)).
		Where("id = ? AND status = ?", id, uint32(from)).
		Updates(campaignModel)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

type statusCount struct {
	Status uint32
	Count  uint64
}

func (r *campaignRepo) UpdateAggregates(ctx context.Context, id uint64) error {
	db := r.baseRepo.DB(ctx)

	statusCounts := make([]*statusCount, 0)
	if err := db.
		Model(new(Recipient)).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", id).
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	var recipientCount, sentCount, deliveredCount, openedCount, clickedCount, failedCount uint64
	for _, sc := range statusCounts {
		recipientCount += sc.Count

		switch entity.RecipientStatus(sc.Status) {
		case entity.RecipientStatusSent:
			sentCount += sc.Count
		case entity.RecipientStatusDelivered:
			sentCount += sc.Count
			deliveredCount += sc.Count
		case entity.RecipientStatusOpened:
			sentCount += sc.Count
			deliveredCount += sc.Count
			openedCount += sc.Count
		case entity.RecipientStatusClicked:
			sentCount += sc.Count
			deliveredCount += sc.Count
			openedCount += sc.Count
			clickedCount += sc.Count
		case entity.RecipientStatusFailed:
			failedCount += sc.Count
		}
	}

	var progressPct float64
	if recipientCount > 0 {
		progressPct = math.Round(float64(sentCount+failedCount)/float64(recipientCount)*10000) / 100
	}

	return db.
		Model(new(Campaign)).
		Where("id = ?", id).
		Updates(&Campaign{
			RecipientCount: goutil.Uint64(recipientCount),
			SentCount:      goutil.Uint64(sentCount),
			DeliveredCount: goutil.Uint64(deliveredCount),
			OpenedCount:    goutil.Uint64(openedCount),
			ClickedCount:   goutil.Uint64(clickedCount),
			FailedCount:    goutil.Uint64(failedCount),
			ProgressPct:    goutil.Float64(progressPct),
			UpdateTime:     goutil.Uint64(now()),
		}).Error
}

func ToCampaign(m *Campaign) *entity.Campaign {
	var (
		audience uint32
		status   uint32
	)
	if m.Audience != nil {
		audience = *m.Audience
	}
	if m.Status != nil {
		status = *m.Status
	}

	return &entity.Campaign{
		ID:                      m.ID,
		ContentID:               m.ContentID,
		CreatedByID:             m.CreatedByID,
		Audience:                entity.Audience(audience),
		Status:                  entity.CampaignStatus(status),
		EstimatedRecipientCount: m.EstimatedRecipientCount,
		RecipientCount:          m.RecipientCount,
		SentCount:               m.SentCount,
		DeliveredCount:          m.DeliveredCount,
		OpenedCount:             m.OpenedCount,
		ClickedCount:            m.ClickedCount,
		FailedCount:             m.FailedCount,
		ProgressPct:             m.ProgressPct,
		AvgReadDurationMs:       m.AvgReadDurationMs,
		ConfirmationToken:       m.ConfirmationToken,
		ConfirmationExpiresAt:   m.ConfirmationExpiresAt,
		ConfirmedAt:             m.ConfirmedAt,
		ScheduledFor:            m.ScheduledFor,
		LastSyncedAt:            m.LastSyncedAt,
		StartedAt:               m.StartedAt,
		CompletedAt:             m.CompletedAt,
		Error:                   m.Error,
		CreateTime:              m.CreateTime,
		UpdateTime:              m.UpdateTime,
	}
}

func ToCampaignModel(e *entity.Campaign) *Campaign {
	m := &Campaign{
		ID:                      e.ID,
		ContentID:               e.ContentID,
		CreatedByID:             e.CreatedByID,
		EstimatedRecipientCount: e.EstimatedRecipientCount,
		RecipientCount:          e.RecipientCount,
		SentCount:               e.SentCount,
		DeliveredCount:          e.DeliveredCount,
		OpenedCount:             e.OpenedCount,
		ClickedCount:            e.ClickedCount,
		FailedCount:             e.FailedCount,
		ProgressPct:             e.ProgressPct,
		AvgReadDurationMs:       e.AvgReadDurationMs,
		ConfirmationToken:       e.ConfirmationToken,
		ConfirmationExpiresAt:   e.ConfirmationExpiresAt,
		ConfirmedAt:             e.ConfirmedAt,
		ScheduledFor:            e.ScheduledFor,
		LastSyncedAt:            e.LastSyncedAt,
		StartedAt:               e.StartedAt,
		CompletedAt:             e.CompletedAt,
		Error:                   e.Error,
		CreateTime:              e.CreateTime,
		UpdateTime:              e.UpdateTime,
	}

	if e.Audience != entity.AudienceUnknown {
		m.Audience = goutil.Uint32(uint32(e.Audience))
	}
	if e.Status != entity.CampaignStatusUnknown {
		m.Status = goutil.Uint32(uint32(e.Status))
	}

	return m
}
