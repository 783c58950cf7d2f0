package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// s3API is the subset of *s3.Client used by S3Collection.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Settings locates an S3-compatible bucket (MinIO in development).
type S3Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a path-style client with static credentials.
func NewS3Client(ctx context.Context, s S3Settings) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3Collection stores each document as <prefix>/<name>/<id>.json.
type S3Collection struct {
	client s3API
	bucket string
	prefix string
}

func NewS3Collection(client s3API, bucket, keyPrefix, name string) *S3Collection {
	return &S3Collection{
		client: client,
		bucket: bucket,
		prefix: path.Join(strings.Trim(keyPrefix, "/"), name) + "/",
	}
}

func (c *S3Collection) key(id string) string {
	return c.prefix + id + ".json"
}

func (c *S3Collection) Put(ctx context.Context, doc models.SecureDocument) error {
	raw, err := json.Marshal(doc.Envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(doc.ID)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put document: %w", err)
	}
	return nil
}

func (c *S3Collection) Delete(ctx context.Context, id string) error {
	key := aws.String(c.key(id))

	if _, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: key}); err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("s3 head document: %w", err)
	}

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: key}); err != nil {
		return fmt.Errorf("s3 delete document: %w", err)
	}
	return nil
}

func (c *S3Collection) List(ctx context.Context) ([]models.SecureDocument, error) {
	var result []models.SecureDocument

	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list documents: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			d, err := c.get(ctx, key)
			if err != nil {
				return nil, err
			}
			result = append(result, d)
		}
	}

	sortDocuments(result)
	return result, nil
}

func (c *S3Collection) get(ctx context.Context, key string) (models.SecureDocument, error) {
	d := models.SecureDocument{ID: strings.TrimSuffix(strings.TrimPrefix(key, c.prefix), ".json")}

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return d, fmt.Errorf("s3 get document: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return d, fmt.Errorf("s3 read document: %w", err)
	}
	_ = json.Unmarshal(raw, &d.Envelope)
	return d, nil
}
