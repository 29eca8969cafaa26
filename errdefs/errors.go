// Package errdefs - error taxonomy shared by the document encryption core
//
// Callers match the sentinel values with errors.Is and the typed errors with errors.As.
// Cryptographic failures are never retried automatically.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Key and content errors surface to the user with an actionable message.
var (
	// ErrWrongKey the supplied key is not the key the document was encrypted with
	ErrWrongKey = errors.New("the supplied key does not match this document")

	// ErrCorruptedData the ciphertext or the decrypted content is not usable
	ErrCorruptedData = errors.New("document content is corrupted")

	// ErrPayloadTooLarge the payload exceeds the configured encryption limit
	ErrPayloadTooLarge = errors.New("payload exceeds the encryption size limit")

	// ErrKeyDiscarded the in-memory key was already discarded
	ErrKeyDiscarded = errors.New("document key was discarded")
)

// Flow errors gate the key lifecycle.
var (
	// ErrAcknowledgementRequired the user did not confirm the key was saved
	ErrAcknowledgementRequired = errors.New(
		"confirm the document key has been saved; it can not be recovered",
	)

	// ErrOperationInProgress an encrypt and store operation for the same document is running
	ErrOperationInProgress = errors.New("an operation on this document is already in progress")

	// ErrDocumentExists a document with the requested ID is already stored
	ErrDocumentExists = errors.New("a document with this ID already exists")

	// ErrInvalidFormContent FORM document content is not valid JSON
	ErrInvalidFormContent = errors.New("form content is not valid JSON")
)

// Access errors. Expired and missing shares both collapse into ErrAccessDenied.
var (
	// ErrAccessDenied the caller has no usable access
	ErrAccessDenied = errors.New("access denied")

	// ErrUnauthenticated the caller identity could not be established
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotOwner the caller does not own the document
	ErrNotOwner = errors.New("caller does not own the document")
)

// WeakKeyError a user supplied key failed the strength policy
type WeakKeyError struct {
	// Failed descriptions of every failed rule
	Failed []string
}

// Error implements error
func (e *WeakKeyError) Error() string {
	return fmt.Sprintf("document key is too weak: %s", strings.Join(e.Failed, ", "))
}

// StorageIOError the storage collaborator failed
type StorageIOError struct {
	// Op the storage operation
	Op string
	// Path the object path
	Path string
	// Err the collaborator error
	Err error
}

// Error implements error
func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s of '%s' failed [%s]", e.Op, e.Path, e.Err)
}

// Unwrap exposes the collaborator error
func (e *StorageIOError) Unwrap() error {
	return e.Err
}
