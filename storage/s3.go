package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	TagSizeLimit    = "alo:size-limit"
	TagAllowedTypes = "alo:allowed-types"

	defaultRegion = "us-east-1"
)

var (
	_ ContainerStore = (*S3Store)(nil)
	_ ObjectStore    = (*S3Store)(nil)
)

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKeyID    string
	SecretKey      string
	UsePathStyle   bool
}

// S3Store maps containers onto buckets of an S3-compatible service.
type S3Store struct {
	client         *s3.Client
	region         string
	endpoint       string
	publicEndpoint string
	pathStyle      bool
	log            zerolog.Logger
	disabled       bool
}

// NewS3Store returns a disabled store when credentials are missing; every
// call on it fails with ErrNotConfigured.
func NewS3Store(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Store, error) {
	logger := logging.Component(log, "s3-store")
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	store := &S3Store{
		region:         region,
		endpoint:       strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		publicEndpoint: strings.TrimRight(strings.TrimSpace(cfg.PublicEndpoint), "/"),
		pathStyle:      cfg.UsePathStyle,
		log:            logger,
	}
	if store.publicEndpoint == "" {
		store.publicEndpoint = store.endpoint
	}

	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if accessKey == "" || secretKey == "" {
		logger.Warn().Msg("S3 credentials are not set; storage bootstrap and uploads are disabled")
		store.disabled = true
		return store, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if store.endpoint != "" {
			return aws.Endpoint{
				URL:           store.endpoint,
				PartitionID:   "aws",
				SigningRegion: store.region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[storage.NewS3Store] load aws config")
	}

	store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return store, nil
}

func (s *S3Store) ensureEnabled() error {
	if s.disabled {
		return alerrors.Wrapf(alerrors.ErrNotConfigured, "s3 store")
	}
	return nil
}

func (s *S3Store) ListContainers(ctx context.Context) ([]string, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}

	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "list buckets")
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// CreateContainer creates the bucket, opens it for anonymous reads when the
// spec is public, and records the upload policy as bucket tags.
func (s *S3Store) CreateContainer(ctx context.Context, spec ContainerSpec) error {
	if err := s.ensureEnabled(); err != nil {
		return err
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(spec.Name)}
	if s.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return errors.Wrapf(err, "create bucket %s", spec.Name)
		}
	}

	if spec.Public {
		policy, err := publicReadPolicy(spec.Name)
		if err != nil {
			return err
		}
		if _, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(spec.Name),
			Policy: aws.String(policy),
		}); err != nil {
			return errors.Wrapf(err, "put bucket policy %s", spec.Name)
		}
	}

	if _, err := s.client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(spec.Name),
		Tagging: &types.Tagging{TagSet: policyTags(spec)},
	}); err != nil {
		return errors.Wrapf(err, "tag bucket %s", spec.Name)
	}
	return nil
}

func (s *S3Store) PutObject(ctx context.Context, container, key string, body io.Reader, size int64, contentType string) error {
	if err := s.ensureEnabled(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
			return alerrors.Wrapf(alerrors.ErrNotFound, "bucket %s", container)
		}
		return err
	}
	return nil
}

// PublicURL is the anonymous read address of an object.
func (s *S3Store) PublicURL(container, key string) string {
	if s.publicEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", container, s.region, key)
	}
	if !s.pathStyle {
		scheme, host, ok := strings.Cut(s.publicEndpoint, "://")
		if ok {
			return fmt.Sprintf("%s://%s.%s/%s", scheme, container, host, key)
		}
	}
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, container, key)
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string   `json:"Sid"`
	Effect    string   `json:"Effect"`
	Principal string   `json:"Principal"`
	Action    []string `json:"Action"`
	Resource  []string `json:"Resource"`
}

func publicReadPolicy(bucket string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Sid:       "PublicRead",
			Effect:    "Allow",
			Principal: "*",
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal bucket policy")
	}
	return string(raw), nil
}

func policyTags(spec ContainerSpec) []types.Tag {
	return []types.Tag{
		{Key: aws.String(TagSizeLimit), Value: aws.String(strconv.FormatInt(spec.SizeLimitBytes, 10))},
		{Key: aws.String(TagAllowedTypes), Value: aws.String(strings.Join(spec.AllowedContentTypes, " "))},
	}
}
