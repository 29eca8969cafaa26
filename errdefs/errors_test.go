package errdefs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alwitt/lexvault/errdefs"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	assert := assert.New(t)

	root := errors.New("connection reset")
	var err error = &errdefs.StorageIOError{Op: "put", Path: "documents/a", Err: root}
	wrapped := fmt.Errorf("upload failed [%w]", err)

	var storageErr *errdefs.StorageIOError
	assert.True(errors.As(wrapped, &storageErr))
	assert.Equal("put", storageErr.Op)
	assert.True(errors.Is(wrapped, root))
	assert.Contains(wrapped.Error(), "documents/a")

	var weak error = &errdefs.WeakKeyError{Failed: []string{"a", "b"}}
	var weakErr *errdefs.WeakKeyError
	assert.True(errors.As(fmt.Errorf("x [%w]", weak), &weakErr))
	assert.Equal("document key is too weak: a, b", weak.Error())

	assert.False(errors.Is(errdefs.ErrWrongKey, errdefs.ErrCorruptedData))
}
