package storage_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/storage"
	"github.com/onepointalo/alo/storage/storagefakes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestRequiredContainers(t *testing.T) {
	specs := storage.RequiredContainers()
	require.Len(t, specs, 2)

	require.Equal(t, storage.AvatarsContainer, specs[0].Name)
	require.Equal(t, int64(5242880), specs[0].SizeLimitBytes)
	require.Equal(t, storage.NeedImagesContainer, specs[1].Name)
	require.Equal(t, int64(10485760), specs[1].SizeLimitBytes)

	for _, spec := range specs {
		require.True(t, spec.Public)
		require.ElementsMatch(t, []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}, spec.AllowedContentTypes)
		require.True(t, spec.Allows("image/webp"))
		require.False(t, spec.Allows("image/gif"))
	}

	// Callers get their own copy.
	specs[0].AllowedContentTypes[0] = "text/plain"
	require.Equal(t, "image/png", storage.RequiredContainers()[0].AllowedContentTypes[0])
}

func TestNewBootstrapper_Validation(t *testing.T) {
	_, err := storage.NewBootstrapper(nil, zerolog.Nop())
	require.Error(t, err)
}

func TestBootstrap_CreatesMissingContainers(t *testing.T) {
	store := storagefakes.NewFakeStore(storage.AvatarsContainer)
	b, err := storage.NewBootstrapper(store, zerolog.Nop())
	require.NoError(t, err)

	report := b.Run(context.Background())
	require.True(t, report.OK())
	require.Equal(t, []string{storage.NeedImagesContainer}, report.Created)
	require.Equal(t, 1, store.Creates())

	spec, ok := store.Container(storage.NeedImagesContainer)
	require.True(t, ok)
	require.Equal(t, int64(10*storage.MiB), spec.SizeLimitBytes)
}

func TestBootstrap_Idempotent(t *testing.T) {
	store := storagefakes.NewFakeStore()
	b, err := storage.NewBootstrapper(store, zerolog.Nop())
	require.NoError(t, err)

	first := b.Run(context.Background())
	require.True(t, first.OK())
	require.Len(t, first.Created, 2)

	second := b.Run(context.Background())
	require.True(t, second.OK())
	require.Empty(t, second.Created)
	require.Equal(t, 2, store.Creates())
}

func TestBootstrap_CreateFailureDoesNotStopOthers(t *testing.T) {
	var logs bytes.Buffer
	store := storagefakes.NewFakeStore()
	store.CreateErrs[storage.AvatarsContainer] = errors.New("access denied")

	b, err := storage.NewBootstrapper(store, zerolog.New(&logs))
	require.NoError(t, err)

	report := b.Run(context.Background())
	require.False(t, report.OK())
	require.NoError(t, report.Err)
	require.Contains(t, report.Failed, storage.AvatarsContainer)
	require.Equal(t, []string{storage.NeedImagesContainer}, report.Created)
	require.Equal(t, 1, strings.Count(logs.String(), "non-critical"))
}

func TestBootstrap_ListFailureAborts(t *testing.T) {
	store := storagefakes.NewFakeStore()
	store.ListHook = func(context.Context) ([]string, error) {
		return nil, errors.New("503 service unavailable")
	}
	b, err := storage.NewBootstrapper(store, zerolog.Nop())
	require.NoError(t, err)

	report := b.Run(context.Background())
	require.Error(t, report.Err)
	require.Zero(t, store.Creates())
}

func TestBootstrap_ListTimeoutThenUploadProceeds(t *testing.T) {
	var logs bytes.Buffer
	store := storagefakes.NewFakeStore(storage.AvatarsContainer)
	release := make(chan struct{})
	listCtxErr := make(chan error, 1)
	store.ListHook = func(ctx context.Context) ([]string, error) {
		<-release
		listCtxErr <- ctx.Err()
		return []string{storage.AvatarsContainer}, nil
	}

	b, err := storage.NewBootstrapper(store, zerolog.New(&logs), storage.WithListTimeout(20*time.Millisecond))
	require.NoError(t, err)

	started := time.Now()
	report := b.Run(context.Background())
	require.ErrorIs(t, report.Err, storage.ErrListTimeout)
	require.Less(t, time.Since(started), time.Second)
	require.Zero(t, store.Creates())
	require.Contains(t, logs.String(), "non-critical")

	// The timeout stops the wait, not the request.
	close(release)
	require.NoError(t, <-listCtxErr)
	require.Zero(t, store.Creates())

	uploader, err := storage.NewUploader(store, zerolog.Nop())
	require.NoError(t, err)

	upload, err := uploader.UploadAvatar(context.Background(), "user-1", pngHeader)
	require.NoError(t, err)
	require.Equal(t, "user-1/avatar.png", upload.Key)

	// need-images was never created, so that upload fails on its own terms.
	_, err = uploader.UploadNeedImage(context.Background(), "user-1", pngHeader)
	require.Error(t, err)
}

func TestBootstrap_OnAuthenticated(t *testing.T) {
	store := storagefakes.NewFakeStore()
	b, err := storage.NewBootstrapper(store, zerolog.Nop())
	require.NoError(t, err)

	b.OnAuthenticated(context.Background(), &identity.Session{IdentityID: "user-1"})
	require.Equal(t, 2, store.Creates())
}
