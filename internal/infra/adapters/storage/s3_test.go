package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2z-marketplace/internal/domain"
)

type fakeS3 struct {
	batches [][]string
	err     error
	errs    []types.Error
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	keys := make([]string, 0, len(in.Delete.Objects))
	for _, o := range in.Delete.Objects {
		keys = append(keys, aws.ToString(o.Key))
	}
	f.batches = append(f.batches, keys)
	return &s3.DeleteObjectsOutput{Errors: f.errs}, nil
}

type fakePresigner struct {
	lastKey  string
	lastType string
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.lastKey = aws.ToString(in.Key)
	f.lastType = aws.ToString(in.ContentType)
	return &v4.PresignedHTTPRequest{URL: "https://bucket.test/" + f.lastKey + "?X-Amz-Signature=abc", Method: http.MethodPut}, nil
}

func TestS3Storage_PresignPut(t *testing.T) {
	p := &fakePresigner{}
	s := NewS3StorageWithClients(&fakeS3{}, p, "media", "https://cdn.a2z.test")

	up, err := s.PresignPut(context.Background(), "posts/u1/abc.jpg", "image/jpeg", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "posts/u1/abc.jpg", p.lastKey)
	assert.Equal(t, "image/jpeg", p.lastType)
	assert.Equal(t, "https://cdn.a2z.test/posts/u1/abc.jpg", up.PublicURL)
	assert.Contains(t, up.UploadURL, "X-Amz-Signature")

	_, err = s.PresignPut(context.Background(), "../etc/passwd", "image/jpeg", time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestS3Storage_Delete(t *testing.T) {
	t.Run("splits into batches of 1000", func(t *testing.T) {
		f := &fakeS3{}
		s := NewS3StorageWithClients(f, &fakePresigner{}, "media", "https://cdn.a2z.test/")
		keys := make([]string, 1500)
		for i := range keys {
			keys[i] = "posts/k"
		}
		require.NoError(t, s.Delete(context.Background(), keys...))
		require.Len(t, f.batches, 2)
		assert.Len(t, f.batches[0], 1000)
		assert.Len(t, f.batches[1], 500)
	})

	t.Run("no keys makes no call", func(t *testing.T) {
		f := &fakeS3{}
		s := NewS3StorageWithClients(f, &fakePresigner{}, "media", "https://cdn.a2z.test/")
		require.NoError(t, s.Delete(context.Background()))
		assert.Empty(t, f.batches)
	})

	t.Run("missing keys are ignored, other errors surface", func(t *testing.T) {
		f := &fakeS3{errs: []types.Error{{Key: aws.String("a"), Code: aws.String("NoSuchKey")}}}
		s := NewS3StorageWithClients(f, &fakePresigner{}, "media", "https://cdn.a2z.test/")
		require.NoError(t, s.Delete(context.Background(), "a"))

		f.errs = []types.Error{{Key: aws.String("b"), Code: aws.String("AccessDenied"), Message: aws.String("denied")}}
		assert.ErrorIs(t, s.Delete(context.Background(), "b"), domain.ErrOperationFailed)
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		f := &fakeS3{err: errors.New("connection reset")}
		s := NewS3StorageWithClients(f, &fakePresigner{}, "media", "https://cdn.a2z.test/")
		assert.ErrorIs(t, s.Delete(context.Background(), "x"), domain.ErrOperationFailed)
	})
}

func TestS3Storage_KeyFromURL(t *testing.T) {
	s := NewS3StorageWithClients(&fakeS3{}, &fakePresigner{}, "media", "https://cdn.a2z.test")

	key, ok := s.KeyFromURL("https://cdn.a2z.test/posts/u1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "posts/u1/a.png", key)

	_, ok = s.KeyFromURL("https://evil.test/posts/u1/a.png")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("https://cdn.a2z.test/")
	assert.False(t, ok)
}
