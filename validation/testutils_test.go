package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

var testPCRs = PCRSet{
	PCR0:       "aabb",
	PCR1:       "cc",
	PCR2:       "dd",
	CommitHash: "0123abc",
}

// newEnclaveCert returns a self-signed P-384 certificate standing in for an
// NSM leaf certificate.
func newEnclaveCert(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "i-0abc-enc0123.us-east-1.aws"},
		NotBefore:    time.Unix(1690000000, 0),
		NotAfter:     time.Unix(1710000000, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	assert.NoError(t, err)
	return key, der
}

// signedAttestation builds an untagged COSE_Sign1 attestation the way the NSM
// emits it, signed with ES384 by key.
func signedAttestation(t *testing.T, key *ecdsa.PrivateKey, certDER []byte, userData []byte) ledgerapi.COSE {
	t.Helper()
	doc := map[string]any{
		"module_id": "i-0abc-enc0123",
		"digest":    "SHA384",
		"timestamp": uint64(1700000000000),
		"pcrs": map[uint64][]byte{
			0: {0xaa, 0xbb},
			1: {0xcc},
			2: {0xdd},
		},
		"certificate": certDER,
		"cabundle":    [][]byte{certDER},
		"public_key":  []byte{},
		"user_data":   userData,
		"nonce":       []byte{},
	}
	payload, err := cbor.Marshal(doc)
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: -35})
	assert.NoError(t, err)

	sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, key)
	assert.NoError(t, err)
	sig, err := signer.Sign(rand.Reader, sigStructure)
	assert.NoError(t, err)

	msg, err := cbor.Marshal([]any{protected, map[any]any{}, payload, sig})
	assert.NoError(t, err)
	return ledgerapi.COSE(msg)
}

func keyUserData(t *testing.T, publicKeyPEM, purpose string) []byte {
	t.Helper()
	data, err := json.Marshal(ledgerapi.KeyAttestationUserData{
		KeyAlgorithm: ledgerapi.ReceiptAlgorithm,
		PublicKey:    publicKeyPEM,
		Purpose:      purpose,
		Contract:     "sei1contract",
	})
	assert.NoError(t, err)
	return data
}

// newReceiptKey returns a P-256 key and its PEM public key.
func newReceiptKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	assert.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func signReceipt(t *testing.T, key *ecdsa.PrivateKey, payload *ledgerapi.SettlementPayload) ledgerapi.COSEBase64 {
	t.Helper()
	data, err := payload.Encode()
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	assert.NoError(t, err)

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = data
	assert.NoError(t, msg.Sign(rand.Reader, nil, signer))

	out, err := msg.MarshalCBOR()
	assert.NoError(t, err)
	return ledgerapi.COSE(out).EncodeBase64()
}
