// Package blobstore - opaque ciphertext object storage
package blobstore

import (
	"context"
	"errors"
	"sync"

	"github.com/alwitt/lexvault/errdefs"
)

// ErrObjectNotFound no object is stored at the path
var ErrObjectNotFound = errors.New("object not found")

// Store keeps opaque blobs at caller chosen paths and returns them unchanged
//
// Every failure is returned as *errdefs.StorageIOError.
type Store interface {
	/*
		Put write an object, replacing any existing one

			@param ctx context.Context - execution context
			@param path string - object path
			@param content []byte - object content
	*/
	Put(ctx context.Context, path string, content []byte) error

	/*
		Get read an object

			@param ctx context.Context - execution context
			@param path string - object path
			@returns object content
	*/
	Get(ctx context.Context, path string) ([]byte, error)

	/*
		Delete remove an object; removing a missing object is not an error

			@param ctx context.Context - execution context
			@param path string - object path
	*/
	Delete(ctx context.Context, path string) error
}

// memoryStore process local Store
type memoryStore struct {
	lock    sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore define a process local store
func NewMemoryStore() Store {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return &errdefs.StorageIOError{Op: "put", Path: path, Err: err}
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	s.lock.Lock()
	defer s.lock.Unlock()
	s.objects[path] = stored
	return nil
}

func (s *memoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errdefs.StorageIOError{Op: "get", Path: path, Err: err}
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored, ok := s.objects[path]
	if !ok {
		return nil, &errdefs.StorageIOError{Op: "get", Path: path, Err: ErrObjectNotFound}
	}
	content := make([]byte, len(stored))
	copy(content, stored)
	return content, nil
}

func (s *memoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return &errdefs.StorageIOError{Op: "delete", Path: path, Err: err}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.objects, path)
	return nil
}
