package storage

import (
	"agentorange/agentorange/config"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/logging"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinIOClient struct {
	client *minio.Client
	bucket string
}

// SnippetObject is the archived form of a generated code snippet.
type SnippetObject struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SubTitle   string    `json:"sub_title"`
	GroupID    string    `json:"group_id"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
	ArchivedAt time.Time `json:"archived_at"`
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOSecure,
		},
	)
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logging.AppLogger.Info("created snippet bucket", zap.String("bucket", bucket))
	}
	return &MinIOClient{client: client, bucket: bucket}, nil
}

// SnippetKey is the object key of a snippet: snippets/<group>/<id>.json.
func SnippetKey(groupID, snippetID string) string {
	return path.Join("snippets", groupID, snippetID+".json")
}

// EncodeSnippet renders the archived JSON document for s.
func EncodeSnippet(s models.CodeSnippet, archivedAt time.Time) ([]byte, error) {
	return json.Marshal(SnippetObject{
		ID:         s.ID,
		Title:      s.Title,
		SubTitle:   s.SubTitle,
		GroupID:    s.GroupID,
		Code:       s.Code,
		CreatedAt:  s.Timestamp,
		ArchivedAt: archivedAt.UTC(),
	})
}

func (m *MinIOClient) ArchiveSnippet(ctx context.Context, s models.CodeSnippet) error {
	defer logging.LogDuration(ctx, "minio_archive_snippet")()

	data, err := EncodeSnippet(s, time.Now())
	if err != nil {
		return err
	}
	key := SnippetKey(s.GroupID, s.ID)
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *MinIOClient) GetSnippet(ctx context.Context, groupID, snippetID string) (*SnippetObject, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, SnippetKey(groupID, snippetID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	var out SnippetObject
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
