package ledgerapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudx-io/bidledger/ledgerapi/parsing"
)

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc is the decoded, JSON-friendly form of a Nitro attestation.
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	// Certificate and CABundle are base64 DER.
	Certificate string   `json:"certificate"`
	CABundle    []string `json:"cabundle"`
	PublicKey   string   `json:"public_key"`
	Nonce       string   `json:"nonce"`
}

// KeyAttestationUserData is embedded in the attestation of the receipt
// signing key.
type KeyAttestationUserData struct {
	KeyAlgorithm string `json:"key_algorithm"` // "ECDSA-P256"
	PublicKey    string `json:"public_key"`    // PEM
	Purpose      string `json:"purpose"`
	Contract     string `json:"contract"`
}

// KeyAttestationDoc is an attestation whose user data describes a key.
type KeyAttestationDoc struct {
	AttestationDoc
	UserData *KeyAttestationUserData `json:"user_data"`
}

// ParseAttestationDoc decodes the Nitro document carried in c and returns it
// together with the raw user data bytes.
func (c COSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	raw, err := parsing.DecodeNitroDocument(c)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	doc := AttestationDoc{
		ModuleID:        raw.ModuleID,
		Timestamp:       time.UnixMilli(int64(raw.Timestamp)).UTC(),
		DigestAlgorithm: raw.Digest,
		PCRs:            extractPCRs(raw.PCRs),
		Certificate:     encodeBytes(raw.Certificate),
		CABundle:        parsing.EncodeCertificateBundle(raw.CABundle),
		PublicKey:       string(raw.PublicKey),
		Nonce:           string(raw.Nonce),
	}
	return doc, raw.UserData, nil
}

// ParseKeyAttestation decodes a key attestation including its user data.
func (c COSE) ParseKeyAttestation() (*KeyAttestationDoc, error) {
	doc, userData, err := c.ParseAttestationDoc()
	if err != nil {
		return nil, err
	}

	var keyUserData KeyAttestationUserData
	if len(userData) > 0 {
		if err := json.Unmarshal(userData, &keyUserData); err != nil {
			return nil, fmt.Errorf("parse user data: %w", err)
		}
	}
	return &KeyAttestationDoc{AttestationDoc: doc, UserData: &keyUserData}, nil
}

func extractPCRs(rawPCRs map[uint64][]byte) PCRs {
	return PCRs{
		ImageFileHash:   parsing.FormatPCR(rawPCRs[0]),
		KernelHash:      parsing.FormatPCR(rawPCRs[1]),
		ApplicationHash: parsing.FormatPCR(rawPCRs[2]),
		IAMRoleHash:     parsing.FormatPCR(rawPCRs[3]),
		InstanceIDHash:  parsing.FormatPCR(rawPCRs[4]),
		SigningCertHash: parsing.FormatPCR(rawPCRs[8]),
	}
}

func encodeBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return parsing.EncodeCertificateBundle([][]byte{b})[0]
}
