package entity

type BatchStatus uint32

const (
	BatchStatusUnknown BatchStatus = iota
	BatchStatusPending
	BatchStatusSubmitting
	BatchStatusSubmitted
	BatchStatusFailed
)

var batchStatusNames = map[BatchStatus]string{
	BatchStatusPending:    "pending",
	BatchStatusSubmitting: "submitting",
	BatchStatusSubmitted:  "submitted",
	BatchStatusFailed:     "failed",
}

func (s BatchStatus) String() string {
	if name, ok := batchStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Batch is one submission unit of recipients sent to the provider in a
// single API call. Batch indices are contiguous from 0 per campaign.
type Batch struct {
	ID             *uint64     `json:"id,omitempty"`
	CampaignID     *uint64     `json:"campaign_id,omitempty"`
	BatchIndex     *uint64     `json:"batch_index,omitempty"`
	Status         BatchStatus `json:"status,omitempty"`
	ProviderID     *string     `json:"provider_id,omitempty"`
	RecipientCount *uint64     `json:"recipient_count,omitempty"`
	SentCount      *uint64     `json:"sent_count,omitempty"`
	FailedCount    *uint64     `json:"failed_count,omitempty"`
	Error          *string     `json:"error,omitempty"`
	SubmittedAt    *uint64     `json:"submitted_at,omitempty"`
	CreateTime     *uint64     `json:"create_time,omitempty"`
	UpdateTime     *uint64     `json:"update_time,omitempty"`
}

func (e *Batch) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Batch) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *Batch) GetBatchIndex() uint64 {
	if e != nil && e.BatchIndex != nil {
		return *e.BatchIndex
	}
	return 0
}

func (e *Batch) GetStatus() BatchStatus {
	if e != nil {
		return e.Status
	}
	return BatchStatusUnknown
}

func (e *Batch) GetSentCount() uint64 {
	if e != nil && e.SentCount != nil {
		return *e.SentCount
	}
	return 0
}

func (e *Batch) GetFailedCount() uint64 {
	if e != nil && e.FailedCount != nil {
		return *e.FailedCount
	}
	return 0
}
