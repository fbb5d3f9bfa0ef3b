// File: internal/usecase/storage_uc.go
package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ StorageUseCase = (*storageUC)(nil)

// imageTypes maps accepted upload content types to their canonical extension.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type UploadURLInput struct {
	UserID      string `json:"-" validate:"required"`
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

type StorageUseCase interface {
	// UploadURL presigns a PUT for one listing image of userID.
	UploadURL(ctx context.Context, in UploadURLInput) (*adapter.PresignedUpload, error)
}

type storageUC struct {
	storage adapter.ObjectStorage
	ttl     time.Duration
	log     *zerolog.Logger
}

func NewStorageUseCase(storage adapter.ObjectStorage, ttl time.Duration, logger *zerolog.Logger) StorageUseCase {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &storageUC{storage: storage, ttl: ttl, log: loggerOrNop(logger, "storage_uc")}
}

func mediaPrefix(userID string) string { return "posts/" + userID + "/" }

func (u *storageUC) UploadURL(ctx context.Context, in UploadURLInput) (*adapter.PresignedUpload, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ct := strings.ToLower(strings.TrimSpace(in.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := imageTypes[ct]
	if !ok {
		return nil, domain.Invalid("content_type", "must be one of image/jpeg, image/png, image/webp, image/gif")
	}
	// keep the client's spelling of a matching extension (.jpeg vs .jpg)
	if e := strings.ToLower(path.Ext(in.Filename)); e != "" && (e == ext || (ct == "image/jpeg" && e == ".jpeg")) {
		ext = e
	}

	key := mediaPrefix(in.UserID) + uuid.NewString() + ext
	up, err := u.storage.PresignPut(ctx, key, ct, u.ttl)
	if err != nil {
		u.log.Error().Err(err).Str("key", key).Msg("presign upload failed")
		return nil, fmt.Errorf("%w: presign upload", domain.ErrOperationFailed)
	}
	return up, nil
}
