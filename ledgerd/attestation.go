package main

import (
	"encoding/json"
	"fmt"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

// EnclaveAttester interface for dependency injection and testing
type EnclaveAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// GenerateKeyAttestation binds the receipt key to the enclave measurements.
func GenerateKeyAttestation(attester EnclaveAttester, km *KeyManager, contract string) (ledgerapi.COSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	publicKeyPEM, err := km.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key to PEM: %w", err)
	}

	userDataBytes, err := json.Marshal(&ledgerapi.KeyAttestationUserData{
		KeyAlgorithm: ledgerapi.ReceiptAlgorithm,
		PublicKey:    publicKeyPEM,
		Purpose:      ledgerapi.ReceiptKeyPurpose,
		Contract:     contract,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key user data: %w", err)
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}

	attestationCBOR, err := attester.Attest(enclave.AttestationOptions{
		UserData: userDataBytes,
		Nonce:    []byte(nonce),
	})
	if err != nil {
		return nil, fmt.Errorf("NSM attestation failed: %w", err)
	}
	return ledgerapi.COSE(attestationCBOR), nil
}

// HandleKeyRequest returns the receipt public key. When an attester is
// available the key is returned with its attestation.
func HandleKeyRequest(attester EnclaveAttester, km *KeyManager, contract string) (*ledgerapi.KeyResponse, error) {
	publicKeyPEM, err := km.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	resp := &ledgerapi.KeyResponse{
		Type:      "key_response",
		PublicKey: publicKeyPEM,
	}
	if attester == nil {
		return resp, nil
	}

	attestation, err := GenerateKeyAttestation(attester, km, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key attestation: %w", err)
	}
	doc, err := attestation.ParseKeyAttestation()
	if err != nil {
		return nil, fmt.Errorf("failed to parse key attestation: %w", err)
	}

	resp.KeyAttestation = doc
	resp.AttestationCOSEBase64 = attestation.EncodeBase64()
	return resp, nil
}
