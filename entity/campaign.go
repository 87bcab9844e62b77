package entity

type CampaignStatus uint32

const (
	CampaignStatusUnknown CampaignStatus = iota
	CampaignStatusAwaitingConfirmation
	CampaignStatusScheduled
	CampaignStatusRunning
	CampaignStatusCompleted
	CampaignStatusFailed
	CampaignStatusCanceled
)

var campaignStatusNames = map[CampaignStatus]string{
	CampaignStatusAwaitingConfirmation: "awaiting_confirmation",
	CampaignStatusScheduled:            "scheduled",
	CampaignStatusRunning:              "running",
	CampaignStatusCompleted:            "completed",
	CampaignStatusFailed:               "failed",
	CampaignStatusCanceled:             "canceled",
}

func (s CampaignStatus) String() string {
	if name, ok := campaignStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed || s == CampaignStatusCanceled
}

type Audience uint32

const (
	AudienceUnknown Audience = iota
	AudienceStaffMembers
	AudienceNewsletterMembers
	AudiencePaidMembers
)

var audienceNames = map[Audience]string{
	AudienceStaffMembers:      "staff_members",
	AudienceNewsletterMembers: "newsletter_members",
	AudiencePaidMembers:       "paid_members",
}

func (a Audience) String() string {
	if name, ok := audienceNames[a]; ok {
		return name
	}
	return "unknown"
}

func ToAudience(s string) Audience {
	for audience, name := range audienceNames {
		if name == s {
			return audience
		}
	}
	return AudienceUnknown
}

type Campaign struct {
	ID                      *uint64        `json:"id,omitempty"`
	ContentID               *uint64        `json:"content_id,omitempty"`
	CreatedByID             *uint64        `json:"created_by_id,omitempty"`
	Audience                Audience       `json:"audience,omitempty"`
	Status                  CampaignStatus `json:"status,omitempty"`
	EstimatedRecipientCount *uint64        `json:"estimated_recipient_count,omitempty"`
	RecipientCount          *uint64        `json:"recipient_count,omitempty"`
	SentCount               *uint64        `json:"sent_count,omitempty"`
	DeliveredCount          *uint64        `json:"delivered_count,omitempty"`
	OpenedCount             *uint64        `json:"opened_count,omitempty"`
	ClickedCount            *uint64        `json:"clicked_count,omitempty"`
	FailedCount             *uint64        `json:"failed_count,omitempty"`
	ProgressPct             *float64       `json:"progress_pct,omitempty"`
	AvgReadDurationMs       *uint64        `json:"average_read_duration_ms,omitempty"`
	ConfirmationToken       *string        `json:"confirmation_token,omitempty"`
	ConfirmationExpiresAt   *uint64        `json:"confirmation_expires_at,omitempty"`
	ConfirmedAt             *uint64        `json:"confirmed_at,omitempty"`
	ScheduledFor            *uint64        `json:"scheduled_for,omitempty"`
	LastSyncedAt            *uint64        `json:"last_synced_at,omitempty"`
	StartedAt               *uint64        `json:"started_at,omitempty"`
	CompletedAt             *uint64        `json:"completed_at,omitempty"`
	Error                   *string        `json:"error,omitempty"`
	CreateTime              *uint64        `json:"create_time,omitempty"`
	UpdateTime              *uint64        `json:"update_time,omitempty"`
}

func (e *Campaign) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Campaign) GetContentID() uint64 {
	if e != nil && e.ContentID != nil {
		return *e.ContentID
	}
	return 0
}

func (e *Campaign) GetAudience() Audience {
	if e != nil {
		return e.Audience
	}
	return AudienceUnknown
}

func (e *Campaign) GetStatus() CampaignStatus {
	if e != nil {
		return e.Status
	}
	return CampaignStatusUnknown
}

func (e *Campaign) GetRecipientCount() uint64 {
	if e != nil && e.RecipientCount != nil {
		return *e.RecipientCount
	}
	return 0
}

func (e *Campaign) GetConfirmationToken() string {
	if e != nil && e.ConfirmationToken != nil {
		return *e.ConfirmationToken
	}
	return ""
}

func (e *Campaign) GetConfirmationExpiresAt() uint64 {
	if e != nil && e.ConfirmationExpiresAt != nil {
		return *e.ConfirmationExpiresAt
	}
	return 0
}

func (e *Campaign) GetScheduledFor() uint64 {
	if e != nil && e.ScheduledFor != nil {
		return *e.ScheduledFor
	}
	return 0
}

func (e *Campaign) GetStartedAt() uint64 {
	if e != nil && e.StartedAt != nil {
		return *e.StartedAt
	}
	return 0
}

func (e *Campaign) GetProgressPct() float64 {
	if e != nil && e.ProgressPct != nil {
		return *e.ProgressPct
	}
	return 0
}

// Update merges the non-nil fields of delta into the campaign.
func (e *Campaign) Update(delta *Campaign) {
	if delta == nil {
		return
	}

	if delta.Status != CampaignStatusUnknown {
		e.Status = delta.Status
	}
	if delta.EstimatedRecipientCount != nil {
		e.EstimatedRecipientCount = delta.EstimatedRecipientCount
	}
	if delta.RecipientCount != nil {
		e.RecipientCount = delta.RecipientCount
	}
	if delta.SentCount != nil {
		e.SentCount = delta.SentCount
	}
	if delta.DeliveredCount != nil {
		e.DeliveredCount = delta.DeliveredCount
	}
	if delta.OpenedCount != nil {
		e.OpenedCount = delta.OpenedCount
	}
	if delta.ClickedCount != nil {
		e.ClickedCount = delta.ClickedCount
	}
	if delta.FailedCount != nil {
		e.FailedCount = delta.FailedCount
	}
	if delta.ProgressPct != nil {
		e.ProgressPct = delta.ProgressPct
	}
	if delta.ConfirmedAt != nil {
		e.ConfirmedAt = delta.ConfirmedAt
	}
	if delta.LastSyncedAt != nil {
		e.LastSyncedAt = delta.LastSyncedAt
	}
	if delta.StartedAt != nil {
		e.StartedAt = delta.StartedAt
	}
	if delta.CompletedAt != nil {
		e.CompletedAt = delta.CompletedAt
	}
	if delta.Error != nil {
		e.Error = delta.Error
	}
	if delta.UpdateTime != nil {
		e.UpdateTime = delta.UpdateTime
	}
}
