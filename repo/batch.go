package repo

import (
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"context"
)

type Batch struct {
	ID             *uint64
	CampaignID     *uint64
	BatchIndex     *uint64
	Status         *uint32
	ProviderID     *string
	RecipientCount *uint64
	SentCount      *uint64
	FailedCount    *uint64
	Error          *string
	SubmittedAt    *uint64
	CreateTime     *uint64
	UpdateTime     *uint64
}

func (m *Batch) TableName() string {
	return "campaign_batch_tab"
}

func (m *Batch) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type BatchRepo interface {
	Create(ctx context.Context, batch *entity.Batch) (uint64, error)
	Update(ctx context.Context, batch *entity.Batch) error
	GetAllByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Batch, error)
}

type batchRepo struct {
	baseRepo BaseRepo
}

func NewBatchRepo(_ context.Context, baseRepo BaseRepo) BatchRepo {
	return &batchRepo{baseRepo: baseRepo}
}

func (r *batchRepo) Create(ctx context.Context, batch *entity.Batch) (uint64, error) {
	batchModel := ToBatchModel(batch)
	if err := r.baseRepo.DB(ctx).Create(batchModel).Error; err != nil {
		return 0, err
	}

	batch.ID = batchModel.ID

	return batchModel.GetID(), nil
}

func (r *batchRepo) Update(ctx context.Context, batch *entity.Batch) error {
	batchModel := ToBatchModel(batch)
	batchModel.ID = nil
	batchModel.UpdateTime = goutil.Uint64(now())

	return r.baseRepo.DB(ctx).
		Model(new(Batch)).
		Where("id = ?", batch.GetID()).
		Updates(batchModel).Error
}

func (r *batchRepo) GetAllByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Batch, error) {
	batchModels := make([]*Batch, 0)
	if err := r.baseRepo.DB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("batch_index ASC").
		Find(&batchModels).Error; err != nil {
		return nil, err
	}

	batches := make([]*entity.Batch, 0, len(batchModels))
	for _, batchModel := range batchModels {
		batches = append(batches, ToBatch(batchModel))
	}

	return batches, nil
}

func ToBatch(m *Batch) *entity.Batch {
	var status uint32
	if m.Status != nil {
		status = *m.Status
	}

	return &entity.Batch{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		BatchIndex:     m.BatchIndex,
		Status:         entity.BatchStatus(status),
		ProviderID:     m.ProviderID,
		RecipientCount: m.RecipientCount,
		SentCount:      m.SentCount,
		FailedCount:    m.FailedCount,
		Error:          m.Error,
		SubmittedAt:    m.SubmittedAt,
		CreateTime:     m.CreateTime,
		UpdateTime:     m.UpdateTime,
	}
}

func ToBatchModel(e *entity.Batch) *Batch {
	m := &Batch{
		ID:             e.ID,
		CampaignID:     e.CampaignID,
		BatchIndex:     e.BatchIndex,
		ProviderID:     e.ProviderID,
		RecipientCount: e.RecipientCount,
		SentCount:      e.SentCount,
		FailedCount:    e.FailedCount,
		Error:          e.Error,
		SubmittedAt:    e.SubmittedAt,
		CreateTime:     e.CreateTime,
		UpdateTime:     e.UpdateTime,
	}

	if e.Status != entity.BatchStatusUnknown {
		m.Status = goutil.Uint32(uint32(e.Status))
	}

	return m
}
