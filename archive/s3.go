// Package archive keeps price samples that history retention drops in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raushankrgupta/price-tracker/models"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Batch is the object written for one product per maintenance pass
type Batch struct {
	ProductID  string               `json:"product_id"`
	URL        string               `json:"url"`
	Currency   string               `json:"currency"`
	ArchivedAt time.Time            `json:"archived_at"`
	Samples    []models.PriceSample `json:"samples"`
}

// S3Archive writes archived samples under Prefix in Bucket
type S3Archive struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archive loads the default AWS credentials chain for region
func NewS3Archive(ctx context.Context, region, bucket, prefix string) (*S3Archive, error) {
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %w", err)
	}
	log.Println("[Archive] S3 Client Initialized")
	return newS3Archive(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Archive(client putObjectAPI, bucket, prefix string) *S3Archive {
	if prefix == "" {
		prefix = "price-history"
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// ObjectKey is <prefix>/<product id>/<unix nanos>.json
func (a *S3Archive) ObjectKey(productID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d.json", a.prefix, productID, at.UnixNano())
}

// ArchiveSamples uploads samples as one JSON object. An empty batch is a no-op.
func (a *S3Archive) ArchiveSamples(ctx context.Context, product *models.Product, samples []models.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}
	now := a.now().UTC()
	batch := Batch{
		ProductID:  product.ID.Hex(),
		URL:        product.URL,
		Currency:   product.Currency,
		ArchivedAt: now,
		Samples:    samples,
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode archive batch: %w", err)
	}

	key := a.ObjectKey(batch.ProductID, now)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	log.Printf("[Archive] Stored %d samples for %s at %s", len(samples), batch.ProductID, key)
	return nil
}
