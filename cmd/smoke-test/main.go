package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pildhora/backend/internal/blob"
	"github.com/pildhora/backend/internal/device"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Get credentials from environment
	databaseURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")

	storageAccountName := os.Getenv("AZURE_STORAGE_ACCOUNT_NAME")
	storageAccountKey := os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	reportContainer := os.Getenv("AZURE_STORAGE_REPORT_CONTAINER")
	if reportContainer == "" {
		reportContainer = "adherence-reports"
	}

	// Validate required environment variables
	if databaseURL == "" {
		logger.Fatal("Missing database credentials. Set DATABASE_URL")
	}

	if redisURL == "" {
		logger.Fatal("Missing redis connection. Set REDIS_URL")
	}

	if storageAccountName == "" || storageAccountKey == "" {
		logger.Fatal("Missing Azure Storage credentials. Set AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY")
	}

	ctx := context.Background()

	// Test 1: Postgres
	logger.Info("=== Testing Postgres connection ===")
	if err := testPostgres(ctx, databaseURL); err != nil {
		logger.Error("Postgres test failed", zap.Error(err))
	} else {
		logger.Info("✅ Postgres test passed")
	}

	// Test 2: Redis
	logger.Info("\n=== Testing Redis connection ===")
	if err := testRedis(ctx, redisURL, logger); err != nil {
		logger.Error("Redis test failed", zap.Error(err))
	} else {
		logger.Info("✅ Redis test passed")
	}

	// Test 3: Azure Blob Storage
	logger.Info("\n=== Testing Azure Blob Storage client ===")
	if err := testBlobStorage(ctx, storageAccountName, storageAccountKey, reportContainer, logger); err != nil {
		logger.Error("Blob storage test failed", zap.Error(err))
	} else {
		logger.Info("✅ Blob storage test passed")
	}

	logger.Info("\n=== All tests completed ===")
}

func testPostgres(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return pool.Ping(pingCtx)
}

func testRedis(ctx context.Context, redisURL string, logger *zap.Logger) error {
	client, err := device.NewClient(ctx, redisURL)
	if err != nil {
		return err
	}

	registry := device.NewRegistry(client, logger)
	defer registry.Close()

	state, err := registry.State(ctx, "smoke-test-device")
	if err != nil {
		return err
	}

	logger.Info("device registry reachable", zap.String("status", state.Status))
	return nil
}

func testBlobStorage(ctx context.Context, accountName, accountKey, container string, logger *zap.Logger) error {
	client, err := blob.NewClient(accountName, accountKey, container, logger)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("smoke-test-%d.pdf", time.Now().Unix())
	payload := []byte("%PDF-1.4 smoke test")

	blobName, err := client.UploadReport(ctx, filename, payload)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	downloaded, err := client.DownloadReport(ctx, blobName)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if string(downloaded) != string(payload) {
		return fmt.Errorf("downloaded content does not match upload")
	}

	logger.Info("blob round trip succeeded", zap.String("blob_name", blobName))
	return nil
}
