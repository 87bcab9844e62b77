package entity

type RecipientStatus uint32

const (
	RecipientStatusUnknown RecipientStatus = iota
	RecipientStatusPending
	RecipientStatusSent
	RecipientStatusDelivered
	RecipientStatusOpened
	RecipientStatusClicked
	RecipientStatusFailed
)

var recipientStatusNames = map[RecipientStatus]string{
	RecipientStatusPending:   "pending",
	RecipientStatusSent:      "sent",
	RecipientStatusDelivered: "delivered",
	RecipientStatusOpened:    "opened",
	RecipientStatusClicked:   "clicked",
	RecipientStatusFailed:    "failed",
}

func (s RecipientStatus) String() string {
	if name, ok := recipientStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// rank orders the delivery lifecycle. failed is sideways, not forward.
func (s RecipientStatus) rank() int {
	switch s {
	case RecipientStatusPending:
		return 0
	case RecipientStatusSent:
		return 1
	case RecipientStatusDelivered:
		return 2
	case RecipientStatusOpened:
		return 3
	case RecipientStatusClicked:
		return 4
	}
	return -1
}

// CanTransitionTo reports whether moving to next keeps the lifecycle
// forward-only, with failed reachable from any non-failed state.
func (s RecipientStatus) CanTransitionTo(next RecipientStatus) bool {
	if s == RecipientStatusFailed {
		return false
	}
	if next == RecipientStatusFailed {
		return true
	}
	return next.rank() >= s.rank()
}

type RecipientType uint32

const (
	RecipientTypeUnknown RecipientType = iota
	RecipientTypeStaffMember
	RecipientTypeMember
)

var recipientTypeNames = map[RecipientType]string{
	RecipientTypeStaffMember: "staff_member",
	RecipientTypeMember:      "member",
}

func (t RecipientType) String() string {
	if name, ok := recipientTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

type Recipient struct {
	ID             *uint64         `json:"id,omitempty"`
	CampaignID     *uint64         `json:"campaign_id,omitempty"`
	BatchID        *uint64         `json:"batch_id,omitempty"`
	MemberID       *uint64         `json:"member_id,omitempty"`
	UserID         *uint64         `json:"user_id,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Name           *string         `json:"name,omitempty"`
	RecipientType  RecipientType   `json:"recipient_type,omitempty"`
	Status         RecipientStatus `json:"status,omitempty"`
	ResendEmailID  *string         `json:"resend_email_id,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	SentAt         *uint64         `json:"sent_at,omitempty"`
	DeliveredAt    *uint64         `json:"delivered_at,omitempty"`
	OpenedAt       *uint64         `json:"opened_at,omitempty"`
	ClickedAt      *uint64         `json:"clicked_at,omitempty"`
	FailedAt       *uint64         `json:"failed_at,omitempty"`
	ReadDurationMs *uint64         `json:"read_duration_ms,omitempty"`
	CreateTime     *uint64         `json:"create_time,omitempty"`
	UpdateTime     *uint64         `json:"update_time,omitempty"`
}

func (e *Recipient) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Recipient) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *Recipient) GetEmail() string {
	if e != nil && e.Email != nil {
		return *e.Email
	}
	return ""
}

func (e *Recipient) GetName() string {
	if e != nil && e.Name != nil {
		return *e.Name
	}
	return ""
}

func (e *Recipient) GetRecipientType() RecipientType {
	if e != nil {
		return e.RecipientType
	}
	return RecipientTypeUnknown
}

func (e *Recipient) GetStatus() RecipientStatus {
	if e != nil {
		return e.Status
	}
	return RecipientStatusUnknown
}

func (e *Recipient) GetResendEmailID() string {
	if e != nil && e.ResendEmailID != nil {
		return *e.ResendEmailID
	}
	return ""
}

func (e *Recipient) GetLastError() string {
	if e != nil && e.LastError != nil {
		return *e.LastError
	}
	return ""
}

func (e *Recipient) GetSentAt() uint64 {
	if e != nil && e.SentAt != nil {
		return *e.SentAt
	}
	return 0
}

func (e *Recipient) GetDeliveredAt() uint64 {
	if e != nil && e.DeliveredAt != nil {
		return *e.DeliveredAt
	}
	return 0
}

func (e *Recipient) GetOpenedAt() uint64 {
	if e != nil && e.OpenedAt != nil {
		return *e.OpenedAt
	}
	return 0
}

func (e *Recipient) GetClickedAt() uint64 {
	if e != nil && e.ClickedAt != nil {
		return *e.ClickedAt
	}
	return 0
}

func (e *Recipient) GetFailedAt() uint64 {
	if e != nil && e.FailedAt != nil {
		return *e.FailedAt
	}
	return 0
}

func (e *Recipient) GetReadDurationMs() uint64 {
	if e != nil && e.ReadDurationMs != nil {
		return *e.ReadDurationMs
	}
	return 0
}
