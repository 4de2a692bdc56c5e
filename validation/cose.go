package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/bidledger/ledgerapi"
	"github.com/cloudx-io/bidledger/ledgerapi/parsing"
)

// VerifyCOSESignature verifies a Nitro attestation signature against the
// leaf certificate carried in the document.
func VerifyCOSESignature(coseBytes ledgerapi.COSE, certB64 string) error {
	cert, err := decodeCertificate(certB64)
	if err != nil {
		return err
	}
	leafKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	// NSM emits an untagged COSE_Sign1 signed with ES384.
	msg, err := parsing.SplitSign1(coseBytes)
	if err != nil {
		return err
	}
	toBeSigned, err := cbor.Marshal([]any{"Signature1", msg.Protected, []byte{}, msg.Payload})
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, leafKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(toBeSigned, msg.Signature); err != nil {
		return fmt.Errorf("attestation signature: %w", err)
	}
	return nil
}

// ParseReceiptKey parses the PEM public key returned by a key request.
func ParseReceiptKey(publicKeyPEM string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("public key is not a PEM PUBLIC KEY block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	return key, nil
}

// verifyReceiptSignature checks an ES256 COSE_Sign1 receipt and returns its
// payload bytes.
func verifyReceiptSignature(coseBytes ledgerapi.COSE, key *ecdsa.PublicKey) ([]byte, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("receipt algorithm: %w", err)
	}
	if alg != cose.AlgorithmES256 {
		return nil, fmt.Errorf("unexpected receipt algorithm %v", alg)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("receipt signature verification failed: %w", err)
	}
	return msg.Payload, nil
}
