package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const signedURLTTL = 15 * time.Minute

// AttachmentSigner turns stored attachment object paths into short-lived
// signed read URLs. Absolute URLs pass through untouched.
type AttachmentSigner struct {
	client     *storage.Client
	bucketName string
	ttl        time.Duration
}

func NewAttachmentSigner(ctx context.Context, bucketName string, opts ...option.ClientOption) (*AttachmentSigner, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &AttachmentSigner{
		client:     client,
		bucketName: bucketName,
		ttl:        signedURLTTL,
	}, nil
}

// IsAbsoluteURL reports whether ref already points somewhere fetchable.
func IsAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

// ObjectName strips a gs://bucket/ or leading slash prefix from ref.
func ObjectName(bucketName, ref string) string {
	ref = strings.TrimPrefix(ref, "gs://"+bucketName+"/")
	return strings.TrimPrefix(ref, "/")
}

func (s *AttachmentSigner) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" || IsAbsoluteURL(ref) {
		return ref, nil
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	}

	url, err := s.client.Bucket(s.bucketName).SignedURL(ObjectName(s.bucketName, ref), opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %v", err)
	}
	return url, nil
}

func (s *AttachmentSigner) Close() error {
	return s.client.Close()
}
