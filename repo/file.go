package repo

import (
	"campaigner/config"
	"context"
	"encoding/json"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// FileRepo archives exported recipient CSVs to a shared Drive folder.
type FileRepo interface {
	CreateFile(ctx context.Context, fileName string, data io.Reader) (string, error)
	Close(ctx context.Context) error
}

type fileRepo struct {
	baseFolderID string
	adminEmail   string

	srv *drive.Service
}

func NewFileRepo(ctx context.Context, cfg config.GoogleDrive) (FileRepo, error) {
	b, err := json.Marshal(cfg.GoogleServiceAccount)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithCredentialsJSON(b))
	if err != nil {
		return nil, err
	}

	return &fileRepo{
		adminEmail:   cfg.AdminEmail,
		baseFolderID: cfg.BaseFolderID,
		srv:          srv,
	}, nil
}

func (r *fileRepo) CreateFile(_ context.Context, fileName string, data io.Reader) (string, error) {
	f := &drive.File{
		Name:    fileName,
		Parents: []string{r.baseFolderID},
	}

	file, err := r.srv.Files.Create(f).Media(data).Do()
	if err != nil {
		return "", err
	}

	if r.adminEmail != "" {
		if _, err := r.srv.Permissions.Create(file.Id, &drive.Permission{
			Type:         "user",
			Role:         "writer",
			EmailAddress: r.adminEmail,
		}).Do(); err != nil {
			return "", err
		}
	}

	return file.Id, nil
}

func (r *fileRepo) Close(_ context.Context) error {
	return nil
}
