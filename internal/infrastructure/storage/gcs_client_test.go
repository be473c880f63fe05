package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "chat/x_y/a.png", ObjectName("bucket", "gs://bucket/chat/x_y/a.png"))
	assert.Equal(t, "chat/a.png", ObjectName("bucket", "/chat/a.png"))
	assert.Equal(t, "gs://other/a.png", ObjectName("bucket", "gs://other/a.png"))
}

func TestResolve_PassesAbsoluteURLsThrough(t *testing.T) {
	signer := &AttachmentSigner{bucketName: "bucket"}

	for _, ref := range []string{"", "https://cdn.example/a.png", "http://cdn.example/b.png"} {
		got, err := signer.Resolve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}
}
