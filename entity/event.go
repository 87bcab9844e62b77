package entity

// Event is one raw provider lifecycle event kept for audit. Append-only,
// never mutated after insert.
type Event struct {
	ID          *uint64 `json:"id,omitempty"`
	CampaignID  *uint64 `json:"campaign_id,omitempty"`
	RecipientID *uint64 `json:"recipient_id,omitempty"`
	EventType   *string `json:"event_type,omitempty"`
	Payload     *string `json:"payload,omitempty"`
	OccurredAt  *uint64 `json:"occurred_at,omitempty"`
	CreateTime  *uint64 `json:"create_time,omitempty"`
}

func (e *Event) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Event) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *Event) GetEventType() string {
	if e != nil && e.EventType != nil {
		return *e.EventType
	}
	return ""
}
