package repo

import (
	"campaigner/entity"
	"context"
)

type Event struct {
	ID          *uint64
	CampaignID  *uint64
	RecipientID *uint64
	EventType   *string
	Payload     *string
	OccurredAt  *uint64
	CreateTime  *uint64
}

func (m *Event) TableName() string {
	return "campaign_event_tab"
}

// EventRepo is append-only. Rows are never updated or deleted.
type EventRepo interface {
	Create(ctx context.Context, event *entity.Event) error
}

type eventRepo struct {
	baseRepo BaseRepo
}

func NewEventRepo(_ context.Context, baseRepo BaseRepo) EventRepo {
	return &eventRepo{baseRepo: baseRepo}
}

func (r *eventRepo) Create(ctx context.Context, event *entity.Event) error {
	eventModel := &Event{
		CampaignID:  event.CampaignID,
		RecipientID: event.RecipientID,
		EventType:   event.EventType,
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt,
		CreateTime:  event.CreateTime,
	}

	if err := r.baseRepo.DB(ctx).Create(eventModel).Error; err != nil {
		return err
	}

	event.ID = eventModel.ID

	return nil
}
