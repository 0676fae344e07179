package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Upload is a stored object.
type Upload struct {
	Container   string
	Key         string
	ContentType string
	Size        int64
	URL         string
}

// Uploader enforces container policy and writes photos. It does not depend on
// a successful bootstrap: a missing container surfaces as a failed write.
type Uploader struct {
	objects ObjectStore
	specs   map[string]ContainerSpec
	nowTime func() time.Time
	suffix  func() string
	log     zerolog.Logger
}

// UploaderOption defines a function type to modify the Uploader instance.
type UploaderOption func(*Uploader)

func WithUploadTime(nowFunc func() time.Time) UploaderOption {
	return func(u *Uploader) {
		u.nowTime = nowFunc
	}
}

// WithNameSuffix sets the random part of need image names.
func WithNameSuffix(suffixFunc func() string) UploaderOption {
	return func(u *Uploader) {
		u.suffix = suffixFunc
	}
}

func NewUploader(objects ObjectStore, log zerolog.Logger, options ...UploaderOption) (*Uploader, error) {
	if objects == nil {
		return nil, errors.New("[storage.NewUploader] object store is required")
	}

	u := &Uploader{
		objects: objects,
		specs:   make(map[string]ContainerSpec),
		nowTime: time.Now,
		suffix: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		},
		log: logging.Component(log, "uploader"),
	}
	for _, spec := range RequiredContainers() {
		u.specs[spec.Name] = spec
	}
	for _, opt := range options {
		opt(u)
	}
	return u, nil
}

// UploadAvatar stores the profile photo, replacing any previous one.
func (u *Uploader) UploadAvatar(ctx context.Context, identityID string, data []byte) (Upload, error) {
	return u.put(ctx, AvatarsContainer, identityID, data, func(ext string) string {
		return fmt.Sprintf("%s/avatar%s", identityID, ext)
	})
}

// UploadNeedImage stores a photo attached to a need under a fresh name.
func (u *Uploader) UploadNeedImage(ctx context.Context, identityID string, data []byte) (Upload, error) {
	return u.put(ctx, NeedImagesContainer, identityID, data, func(ext string) string {
		return fmt.Sprintf("%s/%d-%s%s", identityID, u.nowTime().UnixMilli(), u.suffix(), ext)
	})
}

func (u *Uploader) put(ctx context.Context, container, identityID string, data []byte, key func(ext string) string) (Upload, error) {
	if identityID == "" {
		return Upload{}, alerrors.ErrNoSession
	}
	spec, ok := u.specs[container]
	if !ok {
		return Upload{}, alerrors.Wrapf(alerrors.ErrContainerUnknown, "[storage.Upload] %s", container)
	}
	if len(data) == 0 {
		return Upload{}, alerrors.ErrEmptyContent
	}
	size := int64(len(data))
	if spec.SizeLimitBytes > 0 && size > spec.SizeLimitBytes {
		return Upload{}, alerrors.Wrapf(alerrors.ErrContentTooLarge, "[storage.Upload] %d bytes, limit %d", size, spec.SizeLimitBytes)
	}

	detected := mimetype.Detect(data)
	if !spec.Allows(detected.String()) {
		return Upload{}, alerrors.Wrapf(alerrors.ErrContentTypeRejected, "[storage.Upload] %s", detected.String())
	}

	upload := Upload{
		Container:   container,
		Key:         key(detected.Extension()),
		ContentType: detected.String(),
		Size:        size,
	}
	if err := u.objects.PutObject(ctx, container, upload.Key, bytes.NewReader(data), size, upload.ContentType); err != nil {
		u.log.Error().Err(err).Str("container", container).Str("key", upload.Key).Msg("upload failed")
		return Upload{}, errors.Wrap(err, "[storage.Upload] put object")
	}
	upload.URL = u.objects.PublicURL(container, upload.Key)
	return upload, nil
}
