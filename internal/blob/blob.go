// Package blob wraps Azure Blob Storage for adherence report files.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

// Storage stores generated report files
type Storage interface {
	UploadReport(ctx context.Context, filename string, data []byte) (string, error)
	DownloadReport(ctx context.Context, blobName string) ([]byte, error)
}

// Client wraps the Azure Blob Storage SDK for report file operations
type Client struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewClient creates a new blob storage client
func NewClient(accountName, accountKey, containerName string, logger *zap.Logger) (*Client, error) {
	if accountName == "" || accountKey == "" || containerName == "" {
		return nil, fmt.Errorf("accountName, accountKey, and containerName are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &Client{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// UploadReport uploads a generated report PDF and returns its blob name
func (c *Client) UploadReport(ctx context.Context, filename string, data []byte) (string, error) {
	blobName := fmt.Sprintf("reports/%s", filename)

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	_, err := blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata: map[string]*string{
			"contenttype": toPtr("application/pdf"),
		},
	})

	if err != nil {
		c.logger.Error("failed to upload report",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	c.logger.Info("report uploaded",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	return blobName, nil
}

// DownloadReport retrieves a stored report PDF by blob name
func (c *Client) DownloadReport(ctx context.Context, blobName string) ([]byte, error) {
	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		c.logger.Error("failed to download report",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report body: %w", err)
	}

	return data, nil
}

func toPtr(s string) *string {
	return &s
}

var _ Storage = (*Client)(nil)
