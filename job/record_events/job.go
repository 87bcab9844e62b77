package record_events

import (
	"campaigner/config"
	"campaigner/entity"
	"campaigner/pkg/goutil"
	"campaigner/pkg/mq"
	"campaigner/pkg/service"
	"campaigner/repo"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrEventStreamDisabled = errors.New("event stream is disabled")

// RecordEvents consumes campaign lifecycle events off the stream and
// appends them to the audit table. Runs until the context is canceled.
type RecordEvents struct {
	cfg       *config.Config
	eventRepo repo.EventRepo
	consumer  *mq.Consumer
}

func New(cfg *config.Config, eventRepo repo.EventRepo) service.Job {
	return &RecordEvents{
		cfg:       cfg,
		eventRepo: eventRepo,
	}
}

func (h *RecordEvents) Init(ctx context.Context) error {
	if !h.cfg.EventStream.Enabled {
		return ErrEventStreamDisabled
	}

	mq.RegisterHandler(mq.PayloadCampaignEvent, h.recordEvent)

	consumer, err := mq.NewConsumer(ctx, h.cfg.EventStream.Consumer)
	if err != nil {
		return err
	}
	h.consumer = consumer

	return nil
}

func (h *RecordEvents) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Msg("recording campaign events")
	<-ctx.Done()
	return nil
}

func (h *RecordEvents) recordEvent(ctx context.Context, msg *mq.Message) error {
	campaignEvent := new(mq.CampaignEvent)
	if err := msg.ParseBody(campaignEvent); err != nil {
		return err
	}

	event := &entity.Event{
		CampaignID: goutil.Uint64(campaignEvent.GetCampaignID()),
		EventType:  goutil.String(campaignEvent.GetEventType()),
		OccurredAt: goutil.Uint64(uint64(campaignEvent.GetOccurredAt())),
		CreateTime: goutil.Uint64(uint64(time.Now().Unix())),
	}
	if campaignEvent.RecipientID != nil {
		event.RecipientID = campaignEvent.RecipientID
	}
	if campaignEvent.Payload != nil {
		event.Payload = campaignEvent.Payload
	}

	return h.eventRepo.Create(ctx, event)
}

func (h *RecordEvents) CleanUp(_ context.Context) error {
	if h.consumer != nil {
		return h.consumer.Close()
	}
	return nil
}
