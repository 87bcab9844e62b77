package mq

type Payload uint32

const (
	PayloadUnknown Payload = iota
	PayloadCampaignEvent
)

var Payloads = map[Payload]string{
	PayloadCampaignEvent: "campaign_event",
}

// CampaignEvent is one lifecycle event of a campaign run, published for the
// append-only audit trail.
type CampaignEvent struct {
	CampaignID  *uint64 `json:"campaign_id"`
	RecipientID *uint64 `json:"recipient_id,omitempty"`
	EventType   *string `json:"event_type"`
	Payload     *string `json:"payload,omitempty"`
	OccurredAt  *int64  `json:"occurred_at"`
}

func (m *CampaignEvent) GetCampaignID() uint64 {
	if m != nil && m.CampaignID != nil {
		return *m.CampaignID
	}
	return 0
}

func (m *CampaignEvent) GetRecipientID() uint64 {
	if m != nil && m.RecipientID != nil {
		return *m.RecipientID
	}
	return 0
}

func (m *CampaignEvent) GetEventType() string {
	if m != nil && m.EventType != nil {
		return *m.EventType
	}
	return ""
}

func (m *CampaignEvent) GetPayload() string {
	if m != nil && m.Payload != nil {
		return *m.Payload
	}
	return ""
}

func (m *CampaignEvent) GetOccurredAt() int64 {
	if m != nil && m.OccurredAt != nil {
		return *m.OccurredAt
	}
	return 0
}
