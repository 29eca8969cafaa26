package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alwitt/lexvault/blobstore"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMemoryStore(t *testing.T) {
	assert := assert.New(t)

	utCtx := context.Background()

	uut := blobstore.NewMemoryStore()

	content := []byte("TFhWMQ==")
	assert.Nil(uut.Put(utCtx, "documents/a/b.lxv", content))

	// Stored copy is isolated from the caller buffer
	content[0] = 'X'
	read, err := uut.Get(utCtx, "documents/a/b.lxv")
	assert.Nil(err)
	assert.Equal([]byte("TFhWMQ=="), read)

	_, err = uut.Get(utCtx, "documents/a/missing.lxv")
	var ioErr *errdefs.StorageIOError
	assert.True(errors.As(err, &ioErr))
	assert.ErrorIs(err, blobstore.ErrObjectNotFound)

	assert.Nil(uut.Delete(utCtx, "documents/a/b.lxv"))
	assert.Nil(uut.Delete(utCtx, "documents/a/b.lxv"))
	_, err = uut.Get(utCtx, "documents/a/b.lxv")
	assert.ErrorIs(err, blobstore.ErrObjectNotFound)

	// Cancelled context
	cancelled, cancel := context.WithCancel(utCtx)
	cancel()
	err = uut.Put(cancelled, "documents/a/c.lxv", content)
	assert.True(errors.As(err, &ioErr))
	assert.ErrorIs(err, context.Canceled)
}

type mockS3API struct {
	mock.Mock
}

func (m *mockS3API) PutObject(
	ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *mockS3API) GetObject(
	ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *mockS3API) DeleteObject(
	ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func TestS3Store(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	client := &mockS3API{}
	uut := blobstore.NewS3StoreWithClient(client, "ut-bucket")

	content := []byte("TFhWMQEC")
	path := "documents/owner/doc.lxv"

	// Case 0: put
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "ut-bucket" &&
			aws.ToString(in.Key) == path &&
			bytes.Equal(body, content)
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	assert.Nil(uut.Put(utCtx, path, content))

	// Case 1: get
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == path
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(content))}, nil).Once()
	read, err := uut.Get(utCtx, path)
	assert.Nil(err)
	assert.Equal(content, read)

	// Case 2: missing object
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "missing"
	})).Return((*s3.GetObjectOutput)(nil), &types.NoSuchKey{}).Once()
	_, err = uut.Get(utCtx, "missing")
	assert.ErrorIs(err, blobstore.ErrObjectNotFound)

	// Case 3: delete failure surfaces as storage error
	client.On("DeleteObject", mock.Anything, mock.Anything).
		Return((*s3.DeleteObjectOutput)(nil), errors.New("connection reset")).Once()
	err = uut.Delete(utCtx, path)
	var ioErr *errdefs.StorageIOError
	assert.True(errors.As(err, &ioErr))
	assert.Equal("delete", ioErr.Op)
	assert.Equal(path, ioErr.Path)

	client.AssertExpectations(t)
}
