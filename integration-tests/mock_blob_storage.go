package integration_tests

import (
	"context"
	"fmt"
	"sync"

	"github.com/pildhora/backend/internal/blob"
	"go.uber.org/zap"
)

// MockBlobStorageClient is an in-memory stand-in for Azure Blob Storage
type MockBlobStorageClient struct {
	storage map[string][]byte
	mu      sync.RWMutex
	logger  *zap.Logger
}

var _ blob.Storage = (*MockBlobStorageClient)(nil)

// NewMockBlobStorageClient creates a new mock blob storage client
func NewMockBlobStorageClient(logger *zap.Logger) *MockBlobStorageClient {
	return &MockBlobStorageClient{
		storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadReport stores a report PDF in memory
func (m *MockBlobStorageClient) UploadReport(_ context.Context, filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blobName := fmt.Sprintf("reports/%s", filename)
	m.storage[blobName] = data

	m.logger.Info("mock: uploaded report",
		zap.String("blob_name", blobName),
		zap.Int("size", len(data)),
	)

	return blobName, nil
}

// DownloadReport retrieves a report PDF from memory
func (m *MockBlobStorageClient) DownloadReport(_ context.Context, blobName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.storage[blobName]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", blobName)
	}

	return data, nil
}

// Stored reports whether a blob exists
func (m *MockBlobStorageClient) Stored(blobName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.storage[blobName]
	return ok
}
