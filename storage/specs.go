// Package storage keeps the object storage containers used by photo uploads
// present and writes uploads into them.
package storage

import (
	"context"
	"io"
	"slices"
)

const (
	AvatarsContainer    = "avatars"
	NeedImagesContainer = "need-images"

	MiB = 1 << 20
)

var imageTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}

// ContainerSpec declares a named container with its upload policy.
type ContainerSpec struct {
	Name                string
	Public              bool
	SizeLimitBytes      int64
	AllowedContentTypes []string
}

// Allows reports whether contentType may be stored in the container.
func (c ContainerSpec) Allows(contentType string) bool {
	return len(c.AllowedContentTypes) == 0 || slices.Contains(c.AllowedContentTypes, contentType)
}

// RequiredContainers is the fixed set of containers uploads depend on.
func RequiredContainers() []ContainerSpec {
	return []ContainerSpec{
		{
			Name:                AvatarsContainer,
			Public:              true,
			SizeLimitBytes:      5 * MiB,
			AllowedContentTypes: slices.Clone(imageTypes),
		},
		{
			Name:                NeedImagesContainer,
			Public:              true,
			SizeLimitBytes:      10 * MiB,
			AllowedContentTypes: slices.Clone(imageTypes),
		},
	}
}

// ContainerStore is the management surface of an object store.
type ContainerStore interface {
	ListContainers(ctx context.Context) ([]string, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) error
}

// ObjectStore writes objects and resolves their public address.
type ObjectStore interface {
	PutObject(ctx context.Context, container, key string, body io.Reader, size int64, contentType string) error
	PublicURL(container, key string) string
}
