package minio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"storage-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient wraps the MinIO client for the storage service's archives.
type MinioClient struct {
	client *minio.Client
	config config.MinioConfig
}

var Storage = struct {
	PaymentReceipts string
}{
	PaymentReceipts: "storage-payment-receipts",
}

var BucketNames = []string{
	Storage.PaymentReceipts,
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("Invalid value for MinIO secure flag: %v. Defaulting to false.", err)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
		Region: cfg.MinioLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err = minioClient.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}
	log.Printf("Successfully connected to MinIO at %s", cfg.MinioURL)

	mc := &MinioClient{
		client: minioClient,
		config: cfg,
	}

	for _, bucketName := range BucketNames {
		if err := mc.ensureBucket(ctx, bucketName); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", bucketName, err)
		}
	}
	return mc, nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucketName string) error {
	exists, err := mc.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	err = mc.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{
		Region: mc.config.MinioLocation,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucketName, err)
	}
	log.Printf("Created bucket: %s", bucketName)
	return nil
}

func (mc *MinioClient) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	_, err := mc.client.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload bytes to %s in bucket %s: %w", objectName, bucketName, err)
	}
	return nil
}

// StoreReceipt archives a JSON payment receipt under key.
func (mc *MinioClient) StoreReceipt(ctx context.Context, key string, body []byte) error {
	return mc.UploadBytes(ctx, Storage.PaymentReceipts, key, body, "application/json")
}

func (mc *MinioClient) HealthCheck(ctx context.Context) error {
	if _, err := mc.client.BucketExists(ctx, Storage.PaymentReceipts); err != nil {
		return fmt.Errorf("minio health check failed: %w", err)
	}
	return nil
}
