package validation

import (
	"fmt"
	"strings"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

// ValidateKeyAttestation validates the attestation of a receipt signing key.
//
// Parameters:
//   - attestationCOSEBase64: KeyResponse.AttestationCOSEBase64
//   - expectedPublicKey: PEM public key the caller intends to trust (KeyResponse.PublicKey)
//   - knownPCRs: enclave measurements accepted as genuine
//
// Returns an error only when the attestation cannot be parsed; failed checks
// are reported in the result (call result.IsValid()).
func ValidateKeyAttestation(attestationCOSEBase64 ledgerapi.COSEBase64, expectedPublicKey string, knownPCRs []PCRSet) (*KeyValidationResult, error) {
	coseBytes, err := attestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	keyAttestation, err := coseBytes.ParseKeyAttestation()
	if err != nil {
		return nil, fmt.Errorf("parse key attestation: %w", err)
	}

	result := &KeyValidationResult{
		BaseValidationResult: *validateCommonAttestation(coseBytes, keyAttestation.AttestationDoc, knownPCRs),
	}

	userData := keyAttestation.UserData
	if userData == nil || userData.PublicKey == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Public key missing from attestation")
		return result, nil
	}

	// PEM encoders disagree on trailing newlines.
	if strings.TrimSpace(expectedPublicKey) == strings.TrimSpace(userData.PublicKey) {
		result.PublicKeyMatch = true
		result.ValidationDetails = append(result.ValidationDetails, "Public key matches attestation")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Public key mismatch: provided key does not match attested key")
	}

	if userData.Purpose == ledgerapi.ReceiptKeyPurpose && userData.KeyAlgorithm == ledgerapi.ReceiptAlgorithm {
		result.PurposeValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Key attested for settlement receipts")
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Unexpected key purpose %q (%s)", userData.Purpose, userData.KeyAlgorithm))
	}

	return result, nil
}
