package ledgerapi

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func mockAttestation(t *testing.T, userData []byte) COSE {
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
		"certificate": []byte("cert"),
		"cabundle":    [][]byte{[]byte("root"), []byte("intermediate")},
		"public_key":  []byte{},
		"user_data":   userData,
		"nonce":       []byte("nonce-1"),
	}
	payload, err := cbor.Marshal(doc)
	assert.NoError(t, err)

	msg, err := cbor.Marshal([]any{[]byte{0xa0}, map[string]any{}, payload, []byte{0x01}})
	assert.NoError(t, err)
	return COSE(msg)
}

func TestCOSE_ParseAttestationDoc(t *testing.T) {
	coseBytes := mockAttestation(t, []byte("user-data"))

	doc, userData, err := coseBytes.ParseAttestationDoc()
	assert.NoError(t, err)
	check.Equal(t, "i-0abc-enc0123", doc.ModuleID)
	check.Equal(t, "SHA384", doc.DigestAlgorithm)
	check.Equal(t, int64(1700000000), doc.Timestamp.Unix())
	check.Equal(t, "aabb", doc.PCRs.ImageFileHash)
	check.Equal(t, "cc", doc.PCRs.KernelHash)
	check.Equal(t, "", doc.PCRs.IAMRoleHash)
	check.Equal(t, "Y2VydA==", doc.Certificate)
	check.Equal(t, 2, len(doc.CABundle))
	check.Equal(t, "nonce-1", doc.Nonce)
	check.Equal(t, "user-data", string(userData))
}

func TestCOSE_ParseKeyAttestation(t *testing.T) {
	userData, err := json.Marshal(KeyAttestationUserData{
		KeyAlgorithm: ReceiptAlgorithm,
		PublicKey:    "-----BEGIN PUBLIC KEY-----",
		Purpose:      "settlement_receipt",
		Contract:     "sei1contract",
	})
	assert.NoError(t, err)

	doc, err := mockAttestation(t, userData).ParseKeyAttestation()
	assert.NoError(t, err)
	assert.NotNil(t, doc.UserData)
	check.Equal(t, ReceiptAlgorithm, doc.UserData.KeyAlgorithm)
	check.Equal(t, "sei1contract", doc.UserData.Contract)
}

func TestCOSE_ParseAttestationDoc_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input COSE
	}{
		{name: "not cbor", input: COSE("garbage")},
		{name: "wrong arity", input: mustCBOR(t, []any{[]byte{}, []byte{}})},
		{name: "payload not a document", input: mustCBOR(t, []any{[]byte{}, map[string]any{}, []byte("x"), []byte{}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.input.ParseAttestationDoc()
			check.Error(t, err)
		})
	}
}

func TestSettlementPayload_Encode(t *testing.T) {
	p := &SettlementPayload{
		ReceiptID: "r-1",
		Auction:   "bidding",
		Owner:     "sei1owner",
		Winner:    "sei1alice",
		Payout:    "5atom",
		Status:    "closed",
		Escrow:    []EscrowLine{{Bidder: "sei1alice", Amount: "5atom"}},
	}

	first, err := p.Encode()
	assert.NoError(t, err)
	second, err := p.Encode()
	assert.NoError(t, err)
	check.Equal(t, first, second)

	decoded, err := DecodeSettlementPayload(first)
	assert.NoError(t, err)
	check.Equal(t, *p, *decoded)
}

func mustCBOR(t *testing.T, v any) COSE {
	t.Helper()
	data, err := cbor.Marshal(v)
	assert.NoError(t, err)
	return COSE(data)
}

func TestSettlementReceipt_Signed(t *testing.T) {
	signed := COSE([]byte("signed-settlement-receipt"))
	compressed, err := signed.CompressGzip()
	assert.NoError(t, err)

	tests := []struct {
		name    string
		receipt SettlementReceipt
		wantErr bool
	}{
		{name: "base64", receipt: SettlementReceipt{COSEBase64: signed.EncodeBase64()}},
		{name: "gzip only", receipt: SettlementReceipt{COSEGzip: compressed}},
		{name: "both", receipt: SettlementReceipt{COSEBase64: signed.EncodeBase64(), COSEGzip: compressed}},
		{name: "empty", receipt: SettlementReceipt{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.receipt.Signed()
			if tt.wantErr {
				check.Error(t, err)
				return
			}
			assert.NoError(t, err)
			check.Equal(t, signed, got)
		})
	}
}
