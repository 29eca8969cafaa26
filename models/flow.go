package models

import "fmt"

// KeyModeENUMType how a document key is produced
type KeyModeENUMType string

const (
	// KeyModeAuto key generated by the system
	KeyModeAuto KeyModeENUMType = "AUTO"
	// KeyModeCustom key supplied by the user as a passphrase
	KeyModeCustom KeyModeENUMType = "CUSTOM"
)

// KeySourceENUMType where a key presented for decryption came from
type KeySourceENUMType string

const (
	// KeySourceManual key typed or pasted by the user
	KeySourceManual KeySourceENUMType = "MANUAL"
	// KeySourceShared key fetched through a key share
	KeySourceShared KeySourceENUMType = "SHARED"
)

// KeyPresentationStateENUMType one-time key display state ENUM
type KeyPresentationStateENUMType string

const (
	// KeyPresentationGenerated a fresh key exists in memory only
	KeyPresentationGenerated KeyPresentationStateENUMType = "GENERATED"
	// KeyPresentationDisplayed the key is shown to the user
	KeyPresentationDisplayed KeyPresentationStateENUMType = "DISPLAYED"
	// KeyPresentationAcknowledged the user affirmed the key is saved
	KeyPresentationAcknowledged KeyPresentationStateENUMType = "ACKNOWLEDGED"
	// KeyPresentationDismissed the key was discarded
	KeyPresentationDismissed KeyPresentationStateENUMType = "DISMISSED"
)

// ValidateNextState verify can transition to new state
func (s KeyPresentationStateENUMType) ValidateNextState(
	newState KeyPresentationStateENUMType,
) error {
	statesWithTransitions := map[KeyPresentationStateENUMType]map[KeyPresentationStateENUMType]bool{
		KeyPresentationGenerated: {
			KeyPresentationGenerated: true,
			KeyPresentationDisplayed: true,
		},
		KeyPresentationDisplayed: {
			KeyPresentationDisplayed:    true,
			KeyPresentationAcknowledged: true,
		},
		KeyPresentationAcknowledged: {
			KeyPresentationAcknowledged: true,
			// un-checking the acknowledgement box
			KeyPresentationDisplayed: true,
			KeyPresentationDismissed: true,
		},
		KeyPresentationDismissed: {
			KeyPresentationDismissed: true,
		},
	}

	availableNextStates, ok := statesWithTransitions[s]
	if !ok {
		return fmt.Errorf("key presentation can't transition out of state '%s'", s)
	}

	if _, ok := availableNextStates[newState]; !ok {
		return fmt.Errorf("key presentation can't transition from '%s' to '%s'", s, newState)
	}

	return nil
}

// DecryptionStateENUMType decryption flow state ENUM
type DecryptionStateENUMType string

const (
	// DecryptionAwaitingKey waiting for the user to supply a key
	DecryptionAwaitingKey DecryptionStateENUMType = "AWAITING_KEY"
	// DecryptionVerifying verifying the key and decrypting
	DecryptionVerifying DecryptionStateENUMType = "VERIFYING"
	// DecryptionDecrypted plain text recovered
	DecryptionDecrypted DecryptionStateENUMType = "DECRYPTED"
	// DecryptionWrongKey the key does not match the document
	DecryptionWrongKey DecryptionStateENUMType = "WRONG_KEY"
	// DecryptionCorruptedData the key matched but the content is not usable
	DecryptionCorruptedData DecryptionStateENUMType = "CORRUPTED_DATA"
)

// ValidateNextState verify can transition to new state
func (s DecryptionStateENUMType) ValidateNextState(newState DecryptionStateENUMType) error {
	statesWithTransitions := map[DecryptionStateENUMType]map[DecryptionStateENUMType]bool{
		DecryptionAwaitingKey: {
			DecryptionAwaitingKey: true,
			DecryptionVerifying:   true,
		},
		DecryptionVerifying: {
			DecryptionDecrypted:     true,
			DecryptionWrongKey:      true,
			DecryptionCorruptedData: true,
			// infrastructure failure, nothing was learned about the key
			DecryptionAwaitingKey: true,
		},
		DecryptionDecrypted: {
			// hide content
			DecryptionAwaitingKey: true,
		},
		DecryptionWrongKey: {
			DecryptionAwaitingKey: true,
			DecryptionVerifying:   true,
		},
		DecryptionCorruptedData: {
			DecryptionAwaitingKey: true,
			DecryptionVerifying:   true,
		},
	}

	availableNextStates, ok := statesWithTransitions[s]
	if !ok {
		return fmt.Errorf("decryption can't transition out of state '%s'", s)
	}

	if _, ok := availableNextStates[newState]; !ok {
		return fmt.Errorf("decryption can't transition from '%s' to '%s'", s, newState)
	}

	return nil
}
