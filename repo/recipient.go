package repo

import (
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"context"
	"errors"
)

var ErrRecipientNotFound = errors.New("recipient not found")

type Recipient struct {
	ID             *uint64
	CampaignID     *uint64
	BatchID        *uint64
	MemberID       *uint64
	UserID         *uint64
	Email          *string
	Name           *string
	RecipientType  *uint32
	Status         *uint32
	ResendEmailID  *string
	LastError      *string
	SentAt         *uint64
	DeliveredAt    *uint64
	OpenedAt       *uint64
	ClickedAt      *uint64
	FailedAt       *uint64
	ReadDurationMs *uint64
	CreateTime     *uint64
	UpdateTime     *uint64
}

func (m *Recipient) TableName() string {
	return "campaign_recipient_tab"
}

type RecipientRepo interface {
	CreateMany(ctx context.Context, recipients []*entity.Recipient) error
	CountByCampaignID(ctx context.Context, campaignID uint64) (uint64, error)
	GetAllByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Recipient, error)
	GetManyByCampaignID(ctx context.Context, campaignID uint64, p *entity.Pagination) ([]*entity.Recipient, *entity.Pagination, error)
	GetSubmittedByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Recipient, error)
	Update(ctx context.Context, recipient *entity.Recipient) error
	UpdateMany(ctx context.Context, ids []uint64, delta *entity.Recipient) error
}

type recipientRepo struct {
	baseRepo BaseRepo
}

func NewRecipientRepo(_ context.Context, baseRepo BaseRepo) RecipientRepo {
	return &recipientRepo{baseRepo: baseRepo}
}

func (r *recipientRepo) CreateMany(ctx context.Context, recipients []*entity.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}

	recipientModels := make([]*Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		recipientModels = append(recipientModels, ToRecipientModel(recipient))
	}

	if err := r.baseRepo.DB(ctx).Create(recipientModels).Error; err != nil {
		return err
	}

	for i, recipientModel := range recipientModels {
		recipients[i].ID = recipientModel.ID
	}

	return nil
}

func (r *recipientRepo) CountByCampaignID(ctx context.Context, campaignID uint64) (uint64, error) {
	var count int64
	if err := r.baseRepo.DB(ctx).
		Model(new(Recipient)).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (r *recipientRepo) GetAllByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Recipient, error) {
	recipientModels := make([]*Recipient, 0)
	if err := r.baseRepo.DB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("create_time ASC, id ASC").
		Find(&recipientModels).Error; err != nil {
		return nil, err
	}

	return toRecipients(recipientModels), nil
}

func (r *recipientRepo) GetManyByCampaignID(ctx context.Context, campaignID uint64, p *entity.Pagination) ([]*entity.Recipient, *entity.Pagination, error) {
	var (
		db    = r.baseRepo.DB(ctx)
		limit = p.GetLimit()
		page  = p.GetPage()
	)
	if limit == 0 {
		limit = 100
	}

	var count int64
	if err := db.Model(new(Recipient)).Where("campaign_id = ?", campaignID).Count(&count).Error; err != nil {
		return nil, nil, err
	}

	recipientModels := make([]*Recipient, 0)
	if err := db.
		Where("campaign_id = ?", campaignID).
		Order("create_time ASC, id ASC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit + 1)).
		Find(&recipientModels).Error; err != nil {
		return nil, nil, err
	}

	var hasNext bool
	if len(recipientModels) > int(limit) {
		hasNext = true
		recipientModels = recipientModels[:limit]
	}

	return toRecipients(recipientModels), &entity.Pagination{
		Page:    goutil.Uint32(page),
		Limit:   goutil.Uint32(limit),
		HasNext: goutil.Bool(hasNext),
		Total:   goutil.Uint32(uint32(count)),
	}, nil
}

func (r *recipientRepo) GetSubmittedByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.Recipient, error) {
	recipientModels := make([]*Recipient, 0)
	if err := r.baseRepo.DB(ctx).
		Where("campaign_id = ? AND resend_email_id IS NOT NULL", campaignID).
		Find(&recipientModels).Error; err != nil {
		return nil, err
	}

	return toRecipients(recipientModels), nil
}

func (r *recipientRepo) Update(ctx context.Context, recipient *entity.Recipient) error {
	recipientModel := ToRecipientModel(recipient)
	recipientModel.ID = nil
	recipientModel.UpdateTime = goutil.Uint64(now())

	res := r.baseRepo.DB(ctx).
		Model(new(Recipient)).
		Where("id = ?", recipient.GetID()).
		Updates(recipientModel)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrRecipientNotFound
	}

	return nil
}

func (r *recipientRepo) UpdateMany(ctx context.Context, ids []uint64, delta *entity.Recipient) error {
	if len(ids) == 0 {
		return nil
	}

	recipientModel := ToRecipientModel(delta)
	recipientModel.ID = nil
	recipientModel.UpdateTime = goutil.Uint64(now())

	return r.baseRepo.DB(ctx).
		Model(new(Recipient)).
		Where("id IN ?", ids).
		Updates(recipientModel).Error
}

func toRecipients(recipientModels []*Recipient) []*entity.Recipient {
	recipients := make([]*entity.Recipient, 0, len(recipientModels))
	for _, recipientModel := range recipientModels {
		recipients = append(recipients, ToRecipient(recipientModel))
	}
	return recipients
}

func ToRecipient(m *Recipient) *entity.Recipient {
	var (
		recipientType uint32
		status        uint32
	)
	if m.RecipientType != nil {
		recipientType = *m.RecipientType
	}
	if m.Status != nil {
		status = *m.Status
	}

	return &entity.Recipient{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		BatchID:        m.BatchID,
		MemberID:       m.MemberID,
		UserID:         m.UserID,
		Email:          m.Email,
		Name:           m.Name,
		RecipientType:  entity.RecipientType(recipientType),
		Status:         entity.RecipientStatus(status),
		ResendEmailID:  m.ResendEmailID,
		LastError:      m.LastError,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		OpenedAt:       m.OpenedAt,
		ClickedAt:      m.ClickedAt,
		FailedAt:       m.FailedAt,
		ReadDurationMs: m.ReadDurationMs,
		CreateTime:     m.CreateTime,
		UpdateTime:     m.UpdateTime,
	}
}

func ToRecipientModel(e *entity.Recipient) *Recipient {
	m := &Recipient{
		ID:             e.ID,
		CampaignID:     e.CampaignID,
		BatchID:        e.BatchID,
		MemberID:       e.MemberID,
		UserID:         e.UserID,
		Email:          e.Email,
		Name:           e.Name,
		ResendEmailID:  e.ResendEmailID,
		LastError:      e.LastError,
		SentAt:         e.SentAt,
		DeliveredAt:    e.DeliveredAt,
		OpenedAt:       e.OpenedAt,
		ClickedAt:      e.ClickedAt,
		FailedAt:       e.FailedAt,
		ReadDurationMs: e.ReadDurationMs,
		CreateTime:     e.CreateTime,
		UpdateTime:     e.UpdateTime,
	}

	if e.RecipientType != entity.RecipientTypeUnknown {
		m.RecipientType = goutil.Uint32(uint32(e.RecipientType))
	}
	if e.Status != entity.RecipientStatusUnknown {
		m.Status = goutil.Uint32(uint32(e.Status))
	}

	return m
}
