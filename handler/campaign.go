package handler

import (
	"bytes"
	"campaigner/entity"
	"campaigner/pkg/errutil"
	"campaigner/pkg/goutil"
	"campaigner/pkg/validator"
	"campaigner/repo"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	confirmationTokenBytes = 24
	confirmationTokenTTL   = 15 * time.Minute

	scheduleTimeZone = "Asia/Taipei"
)

var scheduleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	ErrContentNotFound     = errors.New("content not found")
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrNoEligibleRecipient = errors.New("audience has no eligible recipients")
	ErrTokenMismatch       = errors.New("invalid confirmation token")
	ErrTokenExpired        = errors.New("confirmation token has expired")
	ErrNotAwaiting         = errors.New("campaign is not awaiting confirmation")
	ErrScheduleInPast      = errors.New("scheduled time must be in the future")
)

type CampaignHandler interface {
	EstimateRecipients(ctx context.Context, req *EstimateRecipientsRequest, res *EstimateRecipientsResponse) error
	CreateCampaign(ctx context.Context, req *CreateCampaignRequest, res *CreateCampaignResponse) error
	ConfirmCampaign(ctx context.Context, req *ConfirmCampaignRequest, res *ConfirmCampaignResponse) error
	GetCampaigns(ctx context.Context, req *GetCampaignsRequest, res *GetCampaignsResponse) error
	GetCampaign(ctx context.Context, req *GetCampaignRequest, res *GetCampaignResponse) error
	GetCampaignRecipients(ctx context.Context, req *GetCampaignRecipientsRequest, res *GetCampaignRecipientsResponse) error
	SyncCampaign(ctx context.Context, req *SyncCampaignRequest, res *SyncCampaignResponse) error
	// ExportCampaignRecipients renders the recipient list as CSV. fileName is
	// the suggested attachment name.
	ExportCampaignRecipients(ctx context.Context, req *ExportCampaignRecipientsRequest) (fileName string, data []byte, err error)
}

type campaignHandler struct {
	campaignRepo    repo.CampaignRepo
	batchRepo       repo.BatchRepo
	recipientRepo   repo.RecipientRepo
	contentRepo     repo.ContentRepo
	audienceHandler AudienceHandler
	dispatchHandler DispatchHandler
	emailServiceFn  EmailServiceFn
	fileRepo        repo.FileRepo
}

// fileRepo may be nil when CSV archiving is disabled.
func NewCampaignHandler(
	campaignRepo repo.CampaignRepo,
	batchRepo repo.BatchRepo,
	recipientRepo repo.RecipientRepo,
	contentRepo repo.ContentRepo,
	audienceHandler AudienceHandler,
	dispatchHandler DispatchHandler,
	emailServiceFn EmailServiceFn,
	fileRepo repo.FileRepo,
) CampaignHandler {
	return &campaignHandler{
		campaignRepo:    campaignRepo,
		batchRepo:       batchRepo,
		recipientRepo:   recipientRepo,
		contentRepo:     contentRepo,
		audienceHandler: audienceHandler,
		dispatchHandler: dispatchHandler,
		emailServiceFn:  emailServiceFn,
		fileRepo:        fileRepo,
	}
}

var maxPageLimit = uint32(100)

type paginationValidator struct{}

// PaginationValidator accepts an absent pagination block and bounds the
// page size when one is given.
func PaginationValidator() validator.Validator {
	return paginationValidator{}
}

func (paginationValidator) Validate(value interface{}) error {
	p, ok := value.(*entity.Pagination)
	if !ok {
		return errors.New("expect pagination")
	}
	if p == nil {
		return nil
	}
	if p.Limit != nil && *p.Limit > maxPageLimit {
		return fmt.Errorf("max limit is %d", maxPageLimit)
	}
	return nil
}

func AudienceValidator(optional bool) validator.Validator {
	return &validator.String{
		Optional: optional,
		In: []string{
			entity.AudienceStaffMembers.String(),
			entity.AudienceNewsletterMembers.String(),
			entity.AudiencePaidMembers.String(),
		},
	}
}

type EstimateRecipientsRequest struct {
	ContentID *uint64 `json:"content_id,omitempty" schema:"content_id"`
	Audience  *string `json:"audience,omitempty" schema:"audience"`
}

func (r *EstimateRecipientsRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *EstimateRecipientsRequest) GetAudience() string {
	if r != nil && r.Audience != nil {
		return *r.Audience
	}
	return ""
}

type EstimateRecipientsResponse struct {
	Audience                *string `json:"audience"`
	EstimatedRecipientCount *uint64 `json:"estimated_recipient_count"`
}

var EstimateRecipientsValidator = validator.MustForm(map[string]validator.Validator{
	"content_id": &validator.UInt64{},
	"audience":   AudienceValidator(false),
})

func (h *campaignHandler) EstimateRecipients(ctx context.Context, req *EstimateRecipientsRequest, res *EstimateRecipientsResponse) error {
	if err := EstimateRecipientsValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	content, err := h.contentRepo.GetByID(ctx, req.GetContentID())
	if err != nil {
		if errors.Is(err, repo.ErrContentNotFound) {
			return errutil.NotFoundError(ErrContentNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get content err: %v", err)
		return err
	}

	if !content.IsPublished() {
		return errutil.BadRequestError(ErrContentNotPublished)
	}

	audience := entity.ToAudience(req.GetAudience())

	count, err := h.audienceHandler.EstimateCount(ctx, audience)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("estimate recipients err: %v", err)
		return err
	}

	res.Audience = goutil.String(audience.String())
	res.EstimatedRecipientCount = goutil.Uint64(count)

	return nil
}

type CreateCampaignRequest struct {
	ContentID    *uint64 `json:"content_id,omitempty"`
	Audience     *string `json:"audience,omitempty"`
	ScheduledFor *string `json:"scheduled_for,omitempty"`
	CreatedByID  *uint64 `json:"created_by_id,omitempty"`
}

func (r *CreateCampaignRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *CreateCampaignRequest) GetAudience() string {
	if r != nil && r.Audience != nil {
		return *r.Audience
	}
	return ""
}

func (r *CreateCampaignRequest) GetScheduledFor() string {
	if r != nil && r.ScheduledFor != nil {
		return *r.ScheduledFor
	}
	return ""
}

type CreateCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign"`
}

var CreateCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"content_id": &validator.UInt64{},
	"audience":   AudienceValidator(false),
	"scheduled_for": &validator.String{
		Optional: true,
		MaxLen:   32,
	},
	"created_by_id": &validator.UInt64{
		Optional: true,
	},
})

func (h *campaignHandler) CreateCampaign(ctx context.Context, req *CreateCampaignRequest, res *CreateCampaignResponse) error {
	if err := CreateCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	// resend must be configured before any campaign exists
	if _, err := h.emailServiceFn(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("get email service err: %v", err)
		return err
	}

	content, err := h.contentRepo.GetByID(ctx, req.GetContentID())
	if err != nil {
		if errors.Is(err, repo.ErrContentNotFound) {
			return errutil.NotFoundError(ErrContentNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get content err: %v", err)
		return err
	}
	if !content.IsPublished() {
		return errutil.BadRequestError(ErrContentNotPublished)
	}

	audience := entity.ToAudience(req.GetAudience())

	estimate, err := h.audienceHandler.EstimateCount(ctx, audience)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("estimate recipients err: %v", err)
		return err
	}
	if estimate == 0 {
		return errutil.BadRequestError(ErrNoEligibleRecipient)
	}

	var scheduledFor *uint64
	if req.GetScheduledFor() != "" {
		at, err := parseScheduleTime(req.GetScheduledFor())
		if err != nil {
			return errutil.ValidationError(err)
		}
		if at <= uint64(time.Now().Unix()) {
			return errutil.BadRequestError(ErrScheduleInPast)
		}
		scheduledFor = goutil.Uint64(at)
	}

	token, err := newConfirmationToken()
	if err != nil {
		log.Ctx(ctx).Error().Msgf("generate confirmation token err: %v", err)
		return err
	}

	now := uint64(time.Now().Unix())
	campaign := &entity.Campaign{
		ContentID:               req.ContentID,
		CreatedByID:             req.CreatedByID,
		Audience:                audience,
		Status:                  entity.CampaignStatusAwaitingConfirmation,
		EstimatedRecipientCount: goutil.Uint64(estimate),
		ConfirmationToken:       goutil.String(token),
		ConfirmationExpiresAt:   goutil.Uint64(now + uint64(confirmationTokenTTL.Seconds())),
		ScheduledFor:            scheduledFor,
		CreateTime:              goutil.Uint64(now),
		UpdateTime:              goutil.Uint64(now),
	}

	id, err := h.campaignRepo.Create(ctx, campaign)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("create campaign err: %v", err)
		return err
	}
	campaign.ID = goutil.Uint64(id)

	res.Campaign = campaign

	return nil
}

type ConfirmCampaignRequest struct {
	CampaignID        *uint64 `json:"campaign_id,omitempty"`
	ConfirmationToken *string `json:"confirmation_token,omitempty"`
}

func (r *ConfirmCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

func (r *ConfirmCampaignRequest) GetConfirmationToken() string {
	if r != nil && r.ConfirmationToken != nil {
		return *r.ConfirmationToken
	}
	return ""
}

type ConfirmCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign"`
}

var ConfirmCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
	"confirmation_token": &validator.String{
		MinLen: confirmationTokenBytes * 2,
		MaxLen: confirmationTokenBytes * 2,
	},
})

func (h *campaignHandler) ConfirmCampaign(ctx context.Context, req *ConfirmCampaignRequest, res *ConfirmCampaignResponse) error {
	if err := ConfirmCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(ErrCampaignNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return err
	}

	if campaign.GetStatus() != entity.CampaignStatusAwaitingConfirmation {
		return errutil.BadRequestError(ErrNotAwaiting)
	}

	if campaign.GetConfirmationToken() != req.GetConfirmationToken() {
		return errutil.BadRequestError(ErrTokenMismatch)
	}

	now := uint64(time.Now().Unix())
	if now >= campaign.GetConfirmationExpiresAt() {
		return errutil.BadRequestError(ErrTokenExpired)
	}

	content, err := h.contentRepo.GetByID(ctx, campaign.GetContentID())
	if err != nil {
		if errors.Is(err, repo.ErrContentNotFound) {
			return errutil.NotFoundError(ErrContentNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get content err: %v", err)
		return err
	}
	if !content.IsPublished() {
		return errutil.BadRequestError(ErrContentNotPublished)
	}

	nextStatus := entity.CampaignStatusRunning
	if campaign.GetScheduledFor() > now {
		nextStatus = entity.CampaignStatusScheduled
	}

	delta := &entity.Campaign{
		Status:      nextStatus,
		ConfirmedAt: goutil.Uint64(now),
		UpdateTime:  goutil.Uint64(now),
	}

	// CAS transition; a concurrent confirmation loses here
	ok, err := h.campaignRepo.UpdateByStatus(ctx, campaign.GetID(), entity.CampaignStatusAwaitingConfirmation, delta)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("confirm campaign err: %v", err)
		return err
	}
	if !ok {
		return errutil.BadRequestError(ErrNotAwaiting)
	}

	campaign.Update(delta)

	if nextStatus == entity.CampaignStatusRunning {
		h.dispatchHandler.RunCampaignAsync(ctx, campaign.GetID())
	}

	res.Campaign = campaign

	return nil
}

type GetCampaignsRequest struct {
	ContentID  *uint64            `json:"content_id,omitempty" schema:"content_id"`
	Pagination *entity.Pagination `json:"pagination,omitempty"`
}

func (r *GetCampaignsRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

type GetCampaignsResponse struct {
	Campaigns  []*entity.Campaign `json:"campaigns"`
	Pagination *entity.Pagination `json:"pagination,omitempty"`
}

var GetCampaignsValidator = validator.MustForm(map[string]validator.Validator{
	"content_id": &validator.UInt64{},
	"pagination": PaginationValidator(),
})

func (h *campaignHandler) GetCampaigns(ctx context.Context, req *GetCampaignsRequest, res *GetCampaignsResponse) error {
	if err := GetCampaignsValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	if _, err := h.contentRepo.GetByID(ctx, req.GetContentID()); err != nil {
		if errors.Is(err, repo.ErrContentNotFound) {
			return errutil.NotFoundError(ErrContentNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get content err: %v", err)
		return err
	}

	if req.Pagination == nil {
		req.Pagination = new(entity.Pagination)
	}

	campaigns, pagination, err := h.campaignRepo.GetManyByContentID(ctx, req.GetContentID(), req.Pagination)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaigns err: %v", err)
		return err
	}

	res.Campaigns = campaigns
	res.Pagination = pagination

	return nil
}

type GetCampaignRequest struct {
	ContentID  *uint64 `json:"content_id,omitempty" schema:"content_id"`
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *GetCampaignRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *GetCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign"`
	Batches  []*entity.Batch  `json:"batches,omitempty"`
}

var GetCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"content_id":  &validator.UInt64{},
	"campaign_id": &validator.UInt64{},
})

func (h *campaignHandler) GetCampaign(ctx context.Context, req *GetCampaignRequest, res *GetCampaignResponse) error {
	if err := GetCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByIDAndContentID(ctx, req.GetCampaignID(), req.GetContentID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(ErrCampaignNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return err
	}

	batches, err := h.batchRepo.GetAllByCampaignID(ctx, campaign.GetID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign batches err: %v", err)
		return err
	}

	res.Campaign = campaign
	res.Batches = batches

	return nil
}

type GetCampaignRecipientsRequest struct {
	ContentID  *uint64            `json:"content_id,omitempty" schema:"content_id"`
	CampaignID *uint64            `json:"campaign_id,omitempty" schema:"campaign_id"`
	Pagination *entity.Pagination `json:"pagination,omitempty"`
}

func (r *GetCampaignRecipientsRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *GetCampaignRecipientsRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetCampaignRecipientsResponse struct {
	Recipients []*entity.Recipient `json:"recipients"`
	Pagination *entity.Pagination  `json:"pagination,omitempty"`
}

var GetCampaignRecipientsValidator = validator.MustForm(map[string]validator.Validator{
	"content_id":  &validator.UInt64{},
	"campaign_id": &validator.UInt64{},
	"pagination":  PaginationValidator(),
})

func (h *campaignHandler) GetCampaignRecipients(ctx context.Context, req *GetCampaignRecipientsRequest, res *GetCampaignRecipientsResponse) error {
	if err := GetCampaignRecipientsValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	if _, err := h.campaignRepo.GetByIDAndContentID(ctx, req.GetCampaignID(), req.GetContentID()); err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(ErrCampaignNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return err
	}

	if req.Pagination == nil {
		req.Pagination = new(entity.Pagination)
	}

	recipients, pagination, err := h.recipientRepo.GetManyByCampaignID(ctx, req.GetCampaignID(), req.Pagination)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign recipients err: %v", err)
		return err
	}

	res.Recipients = recipients
	res.Pagination = pagination

	return nil
}

type SyncCampaignRequest struct {
	ContentID  *uint64 `json:"content_id,omitempty"`
	CampaignID *uint64 `json:"campaign_id,omitempty"`
}

func (r *SyncCampaignRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *SyncCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type SyncCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign"`
}

var SyncCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"content_id":  &validator.UInt64{},
	"campaign_id": &validator.UInt64{},
})

func (h *campaignHandler) SyncCampaign(ctx context.Context, req *SyncCampaignRequest, res *SyncCampaignResponse) error {
	if err := SyncCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	if _, err := h.campaignRepo.GetByIDAndContentID(ctx, req.GetCampaignID(), req.GetContentID()); err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(ErrCampaignNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return err
	}

	if err := h.dispatchHandler.SyncCampaign(ctx, req.GetCampaignID()); err != nil {
		log.Ctx(ctx).Error().Msgf("sync campaign err: %v", err)
		return err
	}

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return err
	}

	res.Campaign = campaign

	return nil
}

type ExportCampaignRecipientsRequest struct {
	ContentID  *uint64 `json:"content_id,omitempty" schema:"content_id"`
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *ExportCampaignRecipientsRequest) GetContentID() uint64 {
	if r != nil && r.ContentID != nil {
		return *r.ContentID
	}
	return 0
}

func (r *ExportCampaignRecipientsRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

var ExportCampaignRecipientsValidator = validator.MustForm(map[string]validator.Validator{
	"content_id":  &validator.UInt64{},
	"campaign_id": &validator.UInt64{},
})

var recipientCsvHeader = []string{
	"email", "name", "recipient_type", "status",
	"sent_at", "delivered_at", "opened_at", "clicked_at", "failed_at",
	"read_duration_ms", "last_error", "resend_email_id",
}

func (h *campaignHandler) ExportCampaignRecipients(ctx context.Context, req *ExportCampaignRecipientsRequest) (string, []byte, error) {
	if err := ExportCampaignRecipientsValidator.Validate(req); err != nil {
		return "", nil, errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByIDAndContentID(ctx, req.GetCampaignID(), req.GetContentID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return "", nil, errutil.NotFoundError(ErrCampaignNotFound)
		}
		log.Ctx(ctx).Error().Msgf("get campaign err: %v", err)
		return "", nil, err
	}

	recipients, err := h.recipientRepo.GetAllByCampaignID(ctx, campaign.GetID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign recipients err: %v", err)
		return "", nil, err
	}

	data, err := buildRecipientCsv(recipients)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("build recipient csv err: %v", err)
		return "", nil, err
	}

	fileName := fmt.Sprintf("campaign-%d-recipients.csv", campaign.GetID())

	// archive failure never fails the export
	if h.fileRepo != nil {
		if fileID, err := h.fileRepo.CreateFile(ctx, fileName, bytes.NewReader(data)); err != nil {
			log.Ctx(ctx).Error().Msgf("archive recipient csv err: %v", err)
		} else {
			log.Ctx(ctx).Info().Msgf("archived recipient csv, file ID: %s", fileID)
		}
	}

	return fileName, data, nil
}

func buildRecipientCsv(recipients []*entity.Recipient) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	if err := w.Write(recipientCsvHeader); err != nil {
		return nil, err
	}

	for _, recipient := range recipients {
		row := []string{
			recipient.GetEmail(),
			recipient.GetName(),
			recipient.GetRecipientType().String(),
			recipient.GetStatus().String(),
			formatCsvTime(recipient.GetSentAt()),
			formatCsvTime(recipient.GetDeliveredAt()),
			formatCsvTime(recipient.GetOpenedAt()),
			formatCsvTime(recipient.GetClickedAt()),
			formatCsvTime(recipient.GetFailedAt()),
			formatCsvCount(recipient.GetReadDurationMs()),
			recipient.GetLastError(),
			recipient.GetResendEmailID(),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func formatCsvTime(unix uint64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(int64(unix), 0).UTC().Format(time.RFC3339)
}

func formatCsvCount(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}

func newConfirmationToken() (string, error) {
	b := make([]byte, confirmationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// parseScheduleTime interprets a wall-clock timestamp in the newsroom's
// local time zone and returns unix seconds.
func parseScheduleTime(s string) (uint64, error) {
	loc, err := time.LoadLocation(scheduleTimeZone)
	if err != nil {
		return 0, err
	}

	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return uint64(t.Unix()), nil
		}
	}

	return 0, fmt.Errorf("invalid scheduled_for, expect %s", scheduleLayouts[0])
}
