package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	customs := map[string]validator.Func{
		"document_kind":    validateDocumentKind,
		"audit_event_type": validateAuditEventType,
		"key_mode":         validateKeyMode,
		"key_source":       validateKeySource,
		"decryption_state": validateDecryptionState,
	}
	for tag, fn := range customs {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func validateDocumentKind(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch DocumentKindENUMType(fl.Field().String()) {
	case DocumentKindForm:
		fallthrough
	case DocumentKindFile:
		return true
	}
	return false
}

func validateKeyMode(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch KeyModeENUMType(fl.Field().String()) {
	case KeyModeAuto:
		fallthrough
	case KeyModeCustom:
		return true
	}
	return false
}

func validateKeySource(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch KeySourceENUMType(fl.Field().String()) {
	case KeySourceManual:
		fallthrough
	case KeySourceShared:
		return true
	}
	return false
}

func validateDecryptionState(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch DecryptionStateENUMType(fl.Field().String()) {
	case DecryptionAwaitingKey:
		fallthrough
	case DecryptionVerifying:
		fallthrough
	case DecryptionDecrypted:
		fallthrough
	case DecryptionWrongKey:
		fallthrough
	case DecryptionCorruptedData:
		return true
	}
	return false
}

func validateAuditEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch AuditEventTypeENUMType(fl.Field().String()) {
	case AuditEventTypeKeyGenerated:
		fallthrough
	case AuditEventTypeDocumentStored:
		fallthrough
	case AuditEventTypeDocumentUpdated:
		fallthrough
	case AuditEventTypeDocumentDeleted:
		fallthrough
	case AuditEventTypeKeyShared:
		fallthrough
	case AuditEventTypeKeyShareRevoked:
		fallthrough
	case AuditEventTypeKeyShareAccessed:
		fallthrough
	case AuditEventTypeKeyShareDenied:
		fallthrough
	case AuditEventTypeDecryptSucceeded:
		fallthrough
	case AuditEventTypeDecryptFailed:
		return true
	}
	return false
}
