// Package s3store keeps assets in an S3 compatible bucket (AWS, MinIO).
//
// Layout under the configured prefix:
//
//	assets/<uuid>.<ext>                 encoded tiles
//	collections/<key>/.collection       JSON marker describing the collection
//	collections/<key>/<asset id>        one object per member
//
// <key> is storage.CollectionKey of the collection name.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-carousel/pkg/codec"
	"github.com/menta2k/image-carousel/pkg/storage"
)

const (
	markerName = ".collection"
	// referenceKey is set on member objects created without copying the asset
	referenceKey = "asset-key"
)

// API is the subset of *s3.Client the store calls
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config describes the bucket connection
type Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}

// Store implements storage.Store on top of an S3 bucket
type Store struct {
	api    API
	bucket string
	prefix string
}

type marker struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Seed      string    `json:"seed"`
}

// New builds an S3 client from cfg. An empty Endpoint talks to AWS; any other
// endpoint is addressed path-style, which MinIO requires.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithAPI wraps an existing client
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) key(parts ...string) string {
	return path.Join(append([]string{s.prefix}, parts...)...)
}

func (s *Store) assetKey(id storage.AssetID) string {
	return s.key("assets", string(id))
}

func (s *Store) collectionKey(name string, parts ...string) string {
	return s.key(append([]string{"collections", storage.CollectionKey(name)}, parts...)...)
}

// CheckAccess makes sure the bucket exists, creating it when missing
func (s *Store) CheckAccess(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if isForbidden(err) {
		return fmt.Errorf("%w: bucket %s: %v", storage.ErrPermissionDenied, s.bucket, err)
	}

	_, err = s.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if isForbidden(err) {
			return fmt.Errorf("%w: cannot create bucket %s: %v", storage.ErrPermissionDenied, s.bucket, err)
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	log.Ctx(ctx).Info().Str("bucket", s.bucket).Msg("created bucket")
	return nil
}

func (s *Store) CreateAsset(ctx context.Context, img codec.Encoded) (storage.AssetID, error) {
	if len(img.Data) == 0 {
		return "", errors.New("refusing to store empty image")
	}
	id := storage.AssetID(uuid.NewString() + img.Format.Extension())
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.assetKey(id)),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	log.Ctx(ctx).Debug().Str("asset", string(id)).Int("bytes", len(img.Data)).Msg("asset uploaded")
	return id, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.collectionKey(name, markerName)),
	})
	if err != nil {
		if isNotFound(err) {
			return storage.Collection{}, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
		}
		return storage.Collection{}, fmt.Errorf("failed to read collection marker: %w", err)
	}
	defer out.Body.Close()

	var m marker
	if err := json.NewDecoder(out.Body).Decode(&m); err != nil {
		return storage.Collection{}, fmt.Errorf("failed to parse collection marker: %w", err)
	}
	return storage.Collection{ID: m.ID, Name: m.Name}, nil
}

// CreateCollectionWithOptions copies the seed object into the collection when
// opts.CopyAsset is set; otherwise the member is a reference object.
func (s *Store) CreateCollectionWithOptions(ctx context.Context, name string, seed storage.AssetID, opts storage.CollectionOptions) (storage.Collection, error) {
	c := storage.Collection{ID: s.collectionKey(name), Name: name}
	if opts.CopyAsset {
		if err := s.copyMember(ctx, c, seed); err != nil {
			return storage.Collection{}, err
		}
	} else if err := s.referenceMember(ctx, c, seed); err != nil {
		return storage.Collection{}, err
	}

	data, err := json.Marshal(marker{ID: c.ID, Name: name, CreatedAt: time.Now().UTC(), Seed: string(seed)})
	if err != nil {
		return storage.Collection{}, err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.collectionKey(name, markerName)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return storage.Collection{}, fmt.Errorf("failed to write collection marker: %w", err)
	}
	return c, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, seed storage.AssetID) (storage.Collection, error) {
	return s.CreateCollectionWithOptions(ctx, name, seed, storage.CollectionOptions{})
}

// AddAssets copies each asset into the collection and stops at the first
// failure. Existing members, including a reference seed, are left untouched.
func (s *Store) AddAssets(ctx context.Context, ids []storage.AssetID, c storage.Collection) error {
	for _, id := range ids {
		ok, err := s.hasMember(ctx, c, id)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.copyMember(ctx, c, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) hasMember(ctx context.Context, c storage.Collection, id storage.AssetID) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.collectionKey(c.Name, string(id))),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s in %s: %w", id, c.Name, err)
}

func (s *Store) copyMember(ctx context.Context, c storage.Collection, id storage.AssetID) error {
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.collectionKey(c.Name, string(id))),
		CopySource: aws.String(path.Join(s.bucket, s.assetKey(id))),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", storage.ErrAssetNotFound, id)
		}
		return fmt.Errorf("failed to copy %s into %s: %w", id, c.Name, err)
	}
	return nil
}

func (s *Store) referenceMember(ctx context.Context, c storage.Collection, id storage.AssetID) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.collectionKey(c.Name, string(id))),
		Body:     bytes.NewReader(nil),
		Metadata: map[string]string{referenceKey: s.assetKey(id)},
	})
	if err != nil {
		return fmt.Errorf("failed to reference %s in %s: %w", id, c.Name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return statusCode(err) == http.StatusNotFound
}

func isForbidden(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			return true
		}
	}
	return statusCode(err) == http.StatusForbidden
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

var _ storage.Store = (*Store)(nil)
