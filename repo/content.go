package repo

import (
	"campaigner/entity"
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrContentNotFound = errors.New("content item not found")

type Post struct {
	ID           *uint64
	Title        *string
	EmailSubject *string
	Html         *string
	Plaintext    *string
	Status       *string
}

func (m *Post) TableName() string {
	return "post_tab"
}

type ContentRepo interface {
	GetByID(ctx context.Context, id uint64) (entity.ContentItem, error)
}

type contentRepo struct {
	baseRepo BaseRepo
}

func NewContentRepo(_ context.Context, baseRepo BaseRepo) ContentRepo {
	return &contentRepo{baseRepo: baseRepo}
}

func (r *contentRepo) GetByID(ctx context.Context, id uint64) (entity.ContentItem, error) {
	postModel := new(Post)
	if err := r.baseRepo.DB(ctx).Where("id = ?", id).First(postModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.ContentItem{}, ErrContentNotFound
		}
		return entity.ContentItem{}, err
	}

	item := entity.ContentItem{ID: id}
	if postModel.Title != nil {
		item.Title = *postModel.Title
	}
	if postModel.EmailSubject != nil {
		item.EmailSubject = *postModel.EmailSubject
	}
	if postModel.Html != nil {
		item.Html = *postModel.Html
	}
	if postModel.Plaintext != nil {
		item.Plaintext = *postModel.Plaintext
	}
	if postModel.Status != nil {
		item.Status = *postModel.Status
	}

	return item, nil
}
