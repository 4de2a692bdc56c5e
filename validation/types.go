package validation

import "github.com/cloudx-io/bidledger/ledgerapi"

// BaseValidationResult contains common validation results for all attestation types
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

// KeyValidationResult contains validation results specific to key attestations
type KeyValidationResult struct {
	BaseValidationResult
	PublicKeyMatch bool
	PurposeValid   bool
}

// IsValid returns true if all key validation checks passed
func (r *KeyValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.PublicKeyMatch && r.PurposeValid
}

// ReceiptValidationResult holds the checks run against a settlement receipt.
type ReceiptValidationResult struct {
	SignatureValid      bool
	EscrowDigestValid   bool
	SettlementHashValid bool
	OutcomeConsistent   bool
	// Payload is the signed payload; nil when the signature did not verify.
	Payload           *ledgerapi.SettlementPayload
	ValidationDetails []string
}

func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.EscrowDigestValid && r.SettlementHashValid && r.OutcomeConsistent
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // bidledger commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}
