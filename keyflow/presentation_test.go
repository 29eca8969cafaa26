package keyflow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/keyflow"
	"github.com/alwitt/lexvault/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const testKeyText = "dk1.q7xN2m5Vb0cJ4LwZ8eR1tY6uI3oP9aSdFgHjKlZxCvB"

func TestKeyPresentationAcknowledgementGate(t *testing.T) {
	assert := assert.New(t)

	key := encryption.ParseDocumentKey(testKeyText)
	uut := keyflow.NewKeyPresentation(key, keyflow.ExportMetadata{
		DocumentID: uuid.NewString(), DocumentTitle: "Lease Agreement",
	})
	assert.Equal(models.KeyPresentationGenerated, uut.State())
	assert.Equal(encryption.HashKeyText(testKeyText), uut.Fingerprint())

	// Not visible before display
	_, err := uut.Reveal()
	assert.Error(err)
	_, err = uut.Copy()
	assert.Error(err)
	assert.Error(uut.SetAcknowledged(true))

	assert.Nil(uut.Display())
	assert.Equal(models.KeyPresentationDisplayed, uut.State())

	// Masked by default
	assert.NotEqual(testKeyText, uut.Masked())
	assert.True(strings.HasSuffix(uut.Masked(), testKeyText[len(testKeyText)-4:]))

	// Viewing, copying, and exporting do not unlock continue
	text, err := uut.Reveal()
	assert.Nil(err)
	assert.Equal(testKeyText, text)
	assert.Equal(testKeyText, uut.Masked())
	uut.Hide()
	assert.NotEqual(testKeyText, uut.Masked())
	copied, err := uut.Copy()
	assert.Nil(err)
	assert.Equal(testKeyText, copied)
	_, _, err = uut.Export()
	assert.Nil(err)
	assert.False(uut.CanContinue())
	assert.ErrorIs(uut.Continue(), errdefs.ErrAcknowledgementRequired)
	assert.ErrorIs(uut.Dismiss(), errdefs.ErrAcknowledgementRequired)
	assert.Equal(models.KeyPresentationDisplayed, uut.State())

	// Check then un-check
	assert.Nil(uut.SetAcknowledged(true))
	assert.True(uut.CanContinue())
	assert.Nil(uut.SetAcknowledged(false))
	assert.False(uut.CanContinue())
	assert.ErrorIs(uut.Continue(), errdefs.ErrAcknowledgementRequired)

	// Acknowledge and continue
	assert.Nil(uut.SetAcknowledged(true))
	assert.Nil(uut.Continue())
	assert.Equal(models.KeyPresentationDismissed, uut.State())

	// Key is gone for every holder
	assert.True(key.IsZero())
	_, err = uut.Reveal()
	assert.ErrorIs(err, errdefs.ErrKeyDiscarded)
	_, err = uut.Copy()
	assert.ErrorIs(err, errdefs.ErrKeyDiscarded)
	_, _, err = uut.Export()
	assert.ErrorIs(err, errdefs.ErrKeyDiscarded)
	assert.Equal("", uut.Masked())
	assert.ErrorIs(uut.Display(), errdefs.ErrKeyDiscarded)
	assert.ErrorIs(uut.SetAcknowledged(true), errdefs.ErrKeyDiscarded)
	assert.Nil(uut.Dismiss())
	assert.False(uut.CanContinue())
}

func TestKeyPresentationExport(t *testing.T) {
	assert := assert.New(t)

	docID := uuid.NewString()
	generatedAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	uut := keyflow.NewKeyPresentation(
		encryption.ParseDocumentKey(testKeyText),
		keyflow.ExportMetadata{
			DocumentID:    docID,
			DocumentTitle: "Will & Testament / Final",
			GeneratedAt:   generatedAt,
			ContentSize:   2 * 1024 * 1024,
		},
	)
	assert.Nil(uut.Display())

	fileName, body, err := uut.Export()
	assert.Nil(err)
	assert.Equal("Will-Testament-Final-key-20240301-103000.txt", fileName)

	content := string(body)
	assert.Contains(content, "Will & Testament / Final")
	assert.Contains(content, docID)
	assert.Contains(content, "2024-03-01T10:30:00Z")
	assert.Contains(content, "2.0 MiB")
	assert.Contains(content, uut.Fingerprint())
	assert.Contains(content, testKeyText)
	assert.Contains(content, "permanently lost")
}
