package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakePut struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveSamplesWritesBatch(t *testing.T) {
	at := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	put := &fakePut{}
	a := newS3Archive(put, "bucket", "")
	a.now = func() time.Time { return at }

	p := &models.Product{ID: primitive.NewObjectID(), URL: "https://shop.example/p/1", Currency: "USD"}
	samples := []models.PriceSample{
		{Price: decimal.RequireFromString("19.99"), Currency: "USD", Timestamp: at.Add(-40 * 24 * time.Hour), Availability: models.InStock},
		{Price: decimal.RequireFromString("17.50"), Currency: "USD", Timestamp: at.Add(-35 * 24 * time.Hour), Availability: models.InStock},
	}

	require.NoError(t, a.ArchiveSamples(context.Background(), p, samples))
	require.Len(t, put.inputs, 1)
	assert.Equal(t, "bucket", aws.ToString(put.inputs[0].Bucket))
	assert.Equal(t, a.ObjectKey(p.ID.Hex(), at), aws.ToString(put.inputs[0].Key))
	assert.Contains(t, aws.ToString(put.inputs[0].Key), "price-history/"+p.ID.Hex()+"/")
	assert.Equal(t, "application/json", aws.ToString(put.inputs[0].ContentType))

	var got Batch
	require.NoError(t, json.Unmarshal(put.bodies[0], &got))
	assert.Equal(t, p.ID.Hex(), got.ProductID)
	require.Len(t, got.Samples, 2)
	assert.True(t, got.Samples[1].Price.Equal(decimal.RequireFromString("17.5")))
}

func TestArchiveSamplesEmptyIsNoop(t *testing.T) {
	put := &fakePut{}
	a := newS3Archive(put, "bucket", "archive")

	require.NoError(t, a.ArchiveSamples(context.Background(), &models.Product{}, nil))
	assert.Empty(t, put.inputs)
}

func TestArchiveSamplesUploadError(t *testing.T) {
	put := &fakePut{err: errors.New("access denied")}
	a := newS3Archive(put, "bucket", "archive")

	err := a.ArchiveSamples(context.Background(), &models.Product{ID: primitive.NewObjectID()}, []models.PriceSample{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
