package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

func TestVerifyCOSESignature(t *testing.T) {
	key, certDER := newEnclaveCert(t)
	coseBytes := signedAttestation(t, key, certDER, []byte("user-data"))
	certB64 := base64.StdEncoding.EncodeToString(certDER)

	check.NoError(t, VerifyCOSESignature(coseBytes, certB64))

	_, otherCert := newEnclaveCert(t)
	check.Error(t, VerifyCOSESignature(coseBytes, base64.StdEncoding.EncodeToString(otherCert)))
	check.Error(t, VerifyCOSESignature(coseBytes, "not base64!"))
}

func TestValidateKeyAttestation(t *testing.T) {
	enclaveKey, certDER := newEnclaveCert(t)
	_, receiptPEM := newReceiptKey(t)
	_, otherPEM := newReceiptKey(t)

	tests := []struct {
		name          string
		attestedKey   string
		purpose       string
		expectedKey   string
		knownPCRs     []PCRSet
		wantKeyMatch  bool
		wantPurpose   bool
		wantPCRsValid bool
	}{
		{
			name:          "receipt key",
			attestedKey:   receiptPEM,
			purpose:       ledgerapi.ReceiptKeyPurpose,
			expectedKey:   strings.TrimSpace(receiptPEM),
			knownPCRs:     []PCRSet{testPCRs},
			wantKeyMatch:  true,
			wantPurpose:   true,
			wantPCRsValid: true,
		},
		{
			name:          "different key",
			attestedKey:   receiptPEM,
			purpose:       ledgerapi.ReceiptKeyPurpose,
			expectedKey:   otherPEM,
			knownPCRs:     []PCRSet{testPCRs},
			wantPurpose:   true,
			wantPCRsValid: true,
		},
		{
			name:          "wrong purpose",
			attestedKey:   receiptPEM,
			purpose:       "e2e_encryption",
			expectedKey:   receiptPEM,
			knownPCRs:     []PCRSet{testPCRs},
			wantKeyMatch:  true,
			wantPCRsValid: true,
		},
		{
			name:         "unknown measurements",
			attestedKey:  receiptPEM,
			purpose:      ledgerapi.ReceiptKeyPurpose,
			expectedKey:  receiptPEM,
			knownPCRs:    []PCRSet{{PCR0: "00", PCR1: "11", PCR2: "22"}},
			wantKeyMatch: true,
			wantPurpose:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coseBytes := signedAttestation(t, enclaveKey, certDER, keyUserData(t, tt.attestedKey, tt.purpose))

			result, err := ValidateKeyAttestation(coseBytes.EncodeBase64(), tt.expectedKey, tt.knownPCRs)
			assert.NoError(t, err)

			check.Equal(t, tt.wantKeyMatch, result.PublicKeyMatch)
			check.Equal(t, tt.wantPurpose, result.PurposeValid)
			check.Equal(t, tt.wantPCRsValid, result.PCRsValid)
			check.True(t, result.SignatureValid)
			// self-signed leaf does not chain to the AWS Nitro root
			check.False(t, result.CertificateValid)
			check.False(t, result.IsValid())
		})
	}
}

func TestValidateKeyAttestation_Malformed(t *testing.T) {
	_, err := ValidateKeyAttestation(ledgerapi.COSEBase64("%%%"), "", []PCRSet{testPCRs})
	check.Error(t, err)

	_, err = ValidateKeyAttestation(ledgerapi.COSE("garbage").EncodeBase64(), "", []PCRSet{testPCRs})
	check.Error(t, err)
}

func TestValidateKeyAttestation_MissingKey(t *testing.T) {
	enclaveKey, certDER := newEnclaveCert(t)
	coseBytes := signedAttestation(t, enclaveKey, certDER, []byte{})

	result, err := ValidateKeyAttestation(coseBytes.EncodeBase64(), "key", []PCRSet{testPCRs})
	assert.NoError(t, err)
	check.False(t, result.PublicKeyMatch)
	check.False(t, result.IsValid())
}
