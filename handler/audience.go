package handler

import (
	"campaigner/entity"
	"campaigner/pkg/errutil"
	"campaigner/pkg/goutil"
	"campaigner/repo"
	"context"
	"errors"
	"strings"
)

const estimateCachePrefix = "audience_estimate"

var ErrInvalidAudience = errors.New("invalid audience value")

type AudienceHandler interface {
	// Resolve returns the deduplicated, eligible recipients for an audience.
	// Order is deterministic per invocation; first occurrence of an email wins.
	Resolve(ctx context.Context, audience entity.Audience) ([]*entity.Recipient, error)
	EstimateCount(ctx context.Context, audience entity.Audience) (uint64, error)
}

type audienceHandler struct {
	audienceRepo repo.AudienceRepo
	baseCache    repo.BaseCache
}

func NewAudienceHandler(audienceRepo repo.AudienceRepo, baseCache repo.BaseCache) AudienceHandler {
	return &audienceHandler{
		audienceRepo: audienceRepo,
		baseCache:    baseCache,
	}
}

func (h *audienceHandler) Resolve(ctx context.Context, audience entity.Audience) ([]*entity.Recipient, error) {
	var (
		recipients []*entity.Recipient
		err        error
	)

	switch audience {
	case entity.AudienceStaffMembers:
		recipients, err = h.audienceRepo.GetActiveStaff(ctx)
	case entity.AudienceNewsletterMembers:
		recipients, err = h.audienceRepo.GetNewsletterMembers(ctx)
	case entity.AudiencePaidMembers:
		recipients, err = h.audienceRepo.GetPaidMembers(ctx)
	default:
		return nil, errutil.BadRequestError(ErrInvalidAudience)
	}
	if err != nil {
		return nil, err
	}

	return dedupeRecipients(recipients), nil
}

func (h *audienceHandler) EstimateCount(ctx context.Context, audience entity.Audience) (uint64, error) {
	if h.baseCache != nil {
		if v, ok := h.baseCache.Get(ctx, estimateCachePrefix, audience.String()); ok {
			if count, ok := v.(uint64); ok {
				return count, nil
			}
		}
	}

	recipients, err := h.Resolve(ctx, audience)
	if err != nil {
		return 0, err
	}

	count := uint64(len(recipients))
	if h.baseCache != nil {
		h.baseCache.Set(ctx, estimateCachePrefix, audience.String(), count)
	}

	return count, nil
}

func dedupeRecipients(recipients []*entity.Recipient) []*entity.Recipient {
	var (
		seen   = make(map[string]struct{}, len(recipients))
		result = make([]*entity.Recipient, 0, len(recipients))
	)

	for _, recipient := range recipients {
		email := strings.ToLower(strings.TrimSpace(recipient.GetEmail()))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}

		seen[email] = struct{}{}
		recipient.Email = goutil.String(email)
		result = append(result, recipient)
	}

	return result
}
