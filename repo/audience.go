package repo

import (
	"campaigner/entity"
	"context"
)

// Source tables belong to the host identity store; this repo only reads them.

type User struct {
	ID     *uint64
	Email  *string
	Name   *string
	Status *string
}

func (m *User) TableName() string {
	return "user_tab"
}

type Member struct {
	ID            *uint64
	Email         *string
	Name          *string
	Status        *string
	EmailDisabled *uint32
}

func (m *Member) TableName() string {
	return "member_tab"
}

type MemberNewsletter struct {
	ID       *uint64
	MemberID *uint64
}

func (m *MemberNewsletter) TableName() string {
	return "member_newsletter_tab"
}

type AudienceRepo interface {
	GetActiveStaff(ctx context.Context) ([]*entity.Recipient, error)
	GetNewsletterMembers(ctx context.Context) ([]*entity.Recipient, error)
	GetPaidMembers(ctx context.Context) ([]*entity.Recipient, error)
}

type audienceRepo struct {
	baseRepo BaseRepo
}

func NewAudienceRepo(_ context.Context, baseRepo BaseRepo) AudienceRepo {
	return &audienceRepo{baseRepo: baseRepo}
}

func (r *audienceRepo) GetActiveStaff(ctx context.Context) ([]*entity.Recipient, error) {
	userModels := make([]*User, 0)
	if err := r.baseRepo.DB(ctx).
		Where("email IS NOT NULL AND status = ?", "active").
		Find(&userModels).Error; err != nil {
		return nil, err
	}

	recipients := make([]*entity.Recipient, 0, len(userModels))
	for _, userModel := range userModels {
		recipients = append(recipients, &entity.Recipient{
			UserID:        userModel.ID,
			Email:         userModel.Email,
			Name:          userModel.Name,
			RecipientType: entity.RecipientTypeStaffMember,
		})
	}

	return recipients, nil
}

func (r *audienceRepo) GetNewsletterMembers(ctx context.Context) ([]*entity.Recipient, error) {
	memberModels := make([]*Member, 0)
	if err := r.baseRepo.DB(ctx).
		Model(new(Member)).
		Distinct("member_tab.id, member_tab.email, member_tab.name, member_tab.status, member_tab.email_disabled").
		Joins("JOIN member_newsletter_tab ON member_newsletter_tab.member_id = member_tab.id").
		Where("member_tab.email IS NOT NULL AND member_tab.email_disabled = 0 AND member_tab.status IN ?", []string{"free", "paid", "comped"}).
		Find(&memberModels).Error; err != nil {
		return nil, err
	}

	return toMemberRecipients(memberModels), nil
}

func (r *audienceRepo) GetPaidMembers(ctx context.Context) ([]*entity.Recipient, error) {
	memberModels := make([]*Member, 0)
	if err := r.baseRepo.DB(ctx).
		Where("email IS NOT NULL AND email_disabled = 0 AND status IN ?", []string{"paid", "comped"}).
		Find(&memberModels).Error; err != nil {
		return nil, err
	}

	return toMemberRecipients(memberModels), nil
}

func toMemberRecipients(memberModels []*Member) []*entity.Recipient {
	recipients := make([]*entity.Recipient, 0, len(memberModels))
	for _, memberModel := range memberModels {
		recipients = append(recipients, &entity.Recipient{
			MemberID:      memberModel.ID,
			Email:         memberModel.Email,
			Name:          memberModel.Name,
			RecipientType: entity.RecipientTypeMember,
		})
	}
	return recipients
}
