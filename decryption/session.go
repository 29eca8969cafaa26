// Package decryption - user driven document decryption flow
package decryption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/alwitt/lexvault/audit"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
)

// DocumentCiphertext what the viewer needs to decrypt one document
type DocumentCiphertext struct {
	// DocumentID the document
	DocumentID string
	// Kind the document kind
	Kind models.DocumentKindENUMType
	// Blob the ciphertext blob
	Blob string
	// KeyFingerprint stored fingerprint of the document key, may be empty
	KeyFingerprint string
}

// Session decryption of one document for one viewer
//
// The recovered plain text lives only inside the session, until Hide is called.
type Session struct {
	lock      sync.Mutex
	crypto    encryption.CryptographyEngine
	document  DocumentCiphertext
	audit     audit.Sink
	actorID   string
	state     models.DecryptionStateENUMType
	plainText []byte
	logTags   log.Fields
}

/*
NewSession start a decryption session in the AwaitingKey state

	@param crypto encryption.CryptographyEngine - cryptography engine
	@param document DocumentCiphertext - the document
	@param auditSink audit.Sink - audit event sink
	@param actorID string - the viewer
	@returns session
*/
func NewSession(
	crypto encryption.CryptographyEngine,
	document DocumentCiphertext,
	auditSink audit.Sink,
	actorID string,
) *Session {
	return &Session{
		crypto:   crypto,
		document: document,
		audit:    auditSink,
		actorID:  actorID,
		state:    models.DecryptionAwaitingKey,
		logTags: log.Fields{
			"package":  "lexvault",
			"module":   "decryption",
			"document": document.DocumentID,
		},
	}
}

// State current state
func (s *Session) State() models.DecryptionStateENUMType {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

/*
Attempt one decryption attempt with a user supplied key

A wrong key is reported as the WrongKey outcome together with errdefs.ErrWrongKey, and
unusable content as CorruptedData with errdefs.ErrCorruptedData. Any other error is an
infrastructure failure which says nothing about the key; the session returns to
AwaitingKey.

	@param ctx context.Context - execution context
	@param key encryption.DocumentKey - the key
	@param source models.KeySourceENUMType - where the key came from
	@param expectJSON bool - whether the plain text must be JSON (FORM documents)
	@returns the outcome
*/
func (s *Session) Attempt(
	ctx context.Context,
	key encryption.DocumentKey,
	source models.KeySourceENUMType,
	expectJSON bool,
) (models.DecryptionStateENUMType, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.state.ValidateNextState(models.DecryptionVerifying); err != nil {
		return s.state, fmt.Errorf("hide the decrypted content first [%w]", err)
	}
	s.state = models.DecryptionVerifying

	if key.IsZero() {
		s.state = models.DecryptionAwaitingKey
		return s.state, errdefs.ErrKeyDiscarded
	}

	// Cheap check before touching the ciphertext
	if s.document.KeyFingerprint != "" &&
		!encryption.VerifyKeyFingerprint(key, s.document.KeyFingerprint) {
		return s.conclude(ctx, models.DecryptionWrongKey, source, errdefs.ErrWrongKey)
	}

	plainText, err := s.crypto.DecryptData(ctx, s.document.Blob, key)
	if err != nil {
		switch {
		case errors.Is(err, errdefs.ErrWrongKey):
			return s.conclude(ctx, models.DecryptionWrongKey, source, err)
		case errors.Is(err, errdefs.ErrCorruptedData):
			return s.conclude(ctx, models.DecryptionCorruptedData, source, err)
		default:
			log.WithError(err).WithFields(s.logTags).Error("Decryption failed")
			s.state = models.DecryptionAwaitingKey
			return s.state, fmt.Errorf("decryption failed [%w]", err)
		}
	}

	if expectJSON && !json.Valid(plainText) {
		for i := range plainText {
			plainText[i] = 0
		}
		return s.conclude(
			ctx,
			models.DecryptionCorruptedData,
			source,
			fmt.Errorf("decrypted content is not JSON [%w]", errdefs.ErrCorruptedData),
		)
	}

	s.plainText = plainText
	return s.conclude(ctx, models.DecryptionDecrypted, source, nil)
}

// conclude record the outcome of an attempt; caller holds the lock
func (s *Session) conclude(
	ctx context.Context,
	outcome models.DecryptionStateENUMType,
	source models.KeySourceENUMType,
	err error,
) (models.DecryptionStateENUMType, error) {
	s.state = outcome

	eventType := models.AuditEventTypeDecryptFailed
	if outcome == models.DecryptionDecrypted {
		eventType = models.AuditEventTypeDecryptSucceeded
	}
	s.audit.Emit(ctx, audit.Event{
		Type:       eventType,
		ActorID:    s.actorID,
		DocumentID: s.document.DocumentID,
		Metadata:   models.AuditDecryptRelated{Outcome: outcome, KeySource: source},
	})

	log.WithFields(s.logTags).WithField("outcome", outcome).Debug("Decryption attempt concluded")

	return outcome, err
}

// Plaintext copy of the decrypted content; only available in the Decrypted state
func (s *Session) Plaintext() ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != models.DecryptionDecrypted {
		return nil, fmt.Errorf("document is not decrypted, state '%s'", s.state)
	}
	result := make([]byte, len(s.plainText))
	copy(result, s.plainText)
	return result, nil
}

// Hide wipe the decrypted content and wait for a key again
func (s *Session) Hide() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.plainText {
		s.plainText[i] = 0
	}
	s.plainText = nil
	s.state = models.DecryptionAwaitingKey
}
