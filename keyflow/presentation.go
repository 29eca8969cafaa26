// Package keyflow - one-time presentation of a freshly generated document key
//
// Rendering is not handled here. The presentation is a state machine that a UI drives:
// the key is shown, the user confirms it was saved, then the key is discarded.
package keyflow

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/models"
	"github.com/dustin/go-humanize"
)

// ExportMetadata context written alongside the key in the export bundle
type ExportMetadata struct {
	// DocumentID the document ID
	DocumentID string
	// DocumentTitle the document title
	DocumentTitle string
	// GeneratedAt when the key was generated
	GeneratedAt time.Time
	// ContentSize plain text size in bytes, zero if unknown
	ContentSize int64
}

// KeyPresentation one-time display of a document key, gated on acknowledgement
type KeyPresentation struct {
	lock        sync.Mutex
	state       models.KeyPresentationStateENUMType
	key         encryption.DocumentKey
	fingerprint string
	meta        ExportMetadata
	revealed    bool
}

/*
NewKeyPresentation define a new key presentation in the Generated state

	@param key encryption.DocumentKey - the freshly generated key
	@param meta ExportMetadata - export bundle context
	@returns the presentation
*/
func NewKeyPresentation(key encryption.DocumentKey, meta ExportMetadata) *KeyPresentation {
	return &KeyPresentation{
		state:       models.KeyPresentationGenerated,
		key:         key,
		fingerprint: encryption.HashKey(key),
		meta:        meta,
	}
}

// transition move to a new state; caller holds the lock
func (p *KeyPresentation) transition(newState models.KeyPresentationStateENUMType) error {
	if err := p.state.ValidateNextState(newState); err != nil {
		return err
	}
	p.state = newState
	return nil
}

// State current state
func (p *KeyPresentation) State() models.KeyPresentationStateENUMType {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

// Fingerprint the key fingerprint, available in every state
func (p *KeyPresentation) Fingerprint() string {
	return p.fingerprint
}

// Display show the key to the user, masked
func (p *KeyPresentation) Display() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch p.state {
	case models.KeyPresentationGenerated:
		return p.transition(models.KeyPresentationDisplayed)
	case models.KeyPresentationDismissed:
		return errdefs.ErrKeyDiscarded
	default:
		return nil
	}
}

// visible whether the key may be handed to the user; caller holds the lock
func (p *KeyPresentation) visible() error {
	switch p.state {
	case models.KeyPresentationDisplayed, models.KeyPresentationAcknowledged:
		return nil
	case models.KeyPresentationDismissed:
		return errdefs.ErrKeyDiscarded
	default:
		return fmt.Errorf("key is not displayed yet, state '%s'", p.state)
	}
}

// Masked the masked key text; the key is masked until Reveal is called
func (p *KeyPresentation) Masked() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.visible() != nil {
		return ""
	}
	if p.revealed {
		text, _ := p.key.Reveal()
		return text
	}
	return p.key.Masked()
}

// Reveal unmask the key text
func (p *KeyPresentation) Reveal() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.visible(); err != nil {
		return "", err
	}
	p.revealed = true
	return p.key.Reveal()
}

// Hide mask the key text again
func (p *KeyPresentation) Hide() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.revealed = false
}

// Copy key text for the clipboard; does not unmask the display
func (p *KeyPresentation) Copy() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.visible(); err != nil {
		return "", err
	}
	return p.key.Reveal()
}

var unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

/*
Export produce the plain text key export bundle

	@returns suggested file name and the file body
*/
func (p *KeyPresentation) Export() (string, []byte, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.visible(); err != nil {
		return "", nil, err
	}
	keyText, err := p.key.Reveal()
	if err != nil {
		return "", nil, err
	}

	title := p.meta.DocumentTitle
	if title == "" {
		title = "document"
	}
	generatedAt := p.meta.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "DOCUMENT ENCRYPTION KEY\n")
	fmt.Fprintf(&body, "=======================\n\n")
	fmt.Fprintf(&body, "Document:    %s\n", title)
	fmt.Fprintf(&body, "Document ID: %s\n", p.meta.DocumentID)
	fmt.Fprintf(&body, "Generated:   %s\n", generatedAt.UTC().Format(time.RFC3339))
	if p.meta.ContentSize > 0 {
		fmt.Fprintf(
			&body, "Content:     %s\n", humanize.IBytes(uint64(p.meta.ContentSize)),
		)
	}
	fmt.Fprintf(&body, "Fingerprint: %s\n\n", p.fingerprint)
	fmt.Fprintf(&body, "Key:\n%s\n\n", keyText)
	fmt.Fprintf(&body, "WARNING: this key is not stored anywhere else. If it is lost, the document\n")
	fmt.Fprintf(&body, "can not be decrypted by anyone, and its content is permanently lost.\n")

	safeTitle := strings.Trim(unsafeFileNameChars.ReplaceAllString(title, "-"), "-")
	if safeTitle == "" {
		safeTitle = "document"
	}
	fileName := fmt.Sprintf("%s-key-%s.txt", safeTitle, generatedAt.UTC().Format("20060102-150405"))

	return fileName, body.Bytes(), nil
}

/*
SetAcknowledged record whether the user confirmed the key was saved

Viewing, revealing, copying, or exporting the key never acknowledges it.

	@param acknowledged bool - the confirmation checkbox value
*/
func (p *KeyPresentation) SetAcknowledged(acknowledged bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.state == models.KeyPresentationDismissed {
		return errdefs.ErrKeyDiscarded
	}
	if acknowledged {
		return p.transition(models.KeyPresentationAcknowledged)
	}
	if p.state == models.KeyPresentationAcknowledged {
		return p.transition(models.KeyPresentationDisplayed)
	}
	return nil
}

// CanContinue whether the continue action is enabled
func (p *KeyPresentation) CanContinue() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state == models.KeyPresentationAcknowledged
}

// Continue proceed past the key display; the key is discarded
func (p *KeyPresentation) Continue() error {
	return p.Dismiss()
}

// Dismiss close the key display; blocked until the key is acknowledged
func (p *KeyPresentation) Dismiss() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch p.state {
	case models.KeyPresentationDismissed:
		return nil
	case models.KeyPresentationAcknowledged:
	default:
		return errdefs.ErrAcknowledgementRequired
	}
	if err := p.transition(models.KeyPresentationDismissed); err != nil {
		return err
	}
	p.key.Wipe()
	p.revealed = false
	return nil
}
