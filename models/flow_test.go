package models_test

import (
	"testing"
	"time"

	"github.com/alwitt/lexvault/models"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestKeyPresentationTransitions(t *testing.T) {
	assert := assert.New(t)

	type testCase struct {
		from  models.KeyPresentationStateENUMType
		to    models.KeyPresentationStateENUMType
		valid bool
	}

	testCases := []testCase{
		{models.KeyPresentationGenerated, models.KeyPresentationDisplayed, true},
		{models.KeyPresentationGenerated, models.KeyPresentationDismissed, false},
		{models.KeyPresentationDisplayed, models.KeyPresentationAcknowledged, true},
		{models.KeyPresentationDisplayed, models.KeyPresentationDismissed, false},
		{models.KeyPresentationAcknowledged, models.KeyPresentationDisplayed, true},
		{models.KeyPresentationAcknowledged, models.KeyPresentationDismissed, true},
		{models.KeyPresentationDismissed, models.KeyPresentationDisplayed, false},
	}

	for idx, oneTest := range testCases {
		err := oneTest.from.ValidateNextState(oneTest.to)
		if oneTest.valid {
			assert.Nilf(err, "Case %d", idx)
		} else {
			assert.NotNilf(err, "Case %d", idx)
		}
	}
}

func TestDecryptionTransitions(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(models.DecryptionAwaitingKey.ValidateNextState(models.DecryptionVerifying))
	assert.Nil(models.DecryptionVerifying.ValidateNextState(models.DecryptionWrongKey))
	assert.Nil(models.DecryptionWrongKey.ValidateNextState(models.DecryptionVerifying))
	assert.Nil(models.DecryptionDecrypted.ValidateNextState(models.DecryptionAwaitingKey))
	assert.NotNil(models.DecryptionDecrypted.ValidateNextState(models.DecryptionVerifying))
	assert.NotNil(models.DecryptionAwaitingKey.ValidateNextState(models.DecryptionDecrypted))
	assert.NotNil(models.DecryptionStateENUMType("BOGUS").ValidateNextState(models.DecryptionVerifying))
}

func TestKeyShareLiveAt(t *testing.T) {
	assert := assert.New(t)

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.Equal(models.ShareDenialNone, (&models.KeyShare{}).LiveAt(now))
	assert.Equal(models.ShareDenialNone, (&models.KeyShare{ExpiresAt: &future}).LiveAt(now))
	assert.Equal(models.ShareDenialExpired, (&models.KeyShare{ExpiresAt: &past}).LiveAt(now))
	assert.Equal(models.ShareDenialExpired, (&models.KeyShare{ExpiresAt: &now}).LiveAt(now))
	assert.Equal(
		models.ShareDenialRevoked,
		(&models.KeyShare{ExpiresAt: &future, RevokedAt: &past}).LiveAt(now),
	)

	share := models.KeyShare{EncKeyMaterial: []byte("wrapped")}
	assert.Nil(share.Redacted().EncKeyMaterial)
	assert.NotNil(share.EncKeyMaterial)
}

func TestCustomValidators(t *testing.T) {
	assert := assert.New(t)

	validate := validator.New()
	assert.Nil(models.RegisterWithValidator(validate))

	assert.Nil(validate.Var(models.DocumentKindFile, "document_kind"))
	assert.NotNil(validate.Var("SPREADSHEET", "document_kind"))
	assert.Nil(validate.Var(models.KeyModeCustom, "key_mode"))
	assert.NotNil(validate.Var("MANUAL", "key_mode"))
	assert.Nil(validate.Var(models.KeySourceShared, "key_source"))
	assert.Nil(validate.Var(models.DecryptionWrongKey, "decryption_state"))
	assert.Nil(validate.Var(models.AuditEventTypeKeyShareDenied, "audit_event_type"))
	assert.NotNil(validate.Var("KEY_LEAKED", "audit_event_type"))
}
