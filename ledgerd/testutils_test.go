package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"go.uber.org/zap"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/host"
	"github.com/cloudx-io/bidledger/store"
)

const (
	testOwner    = "sei1zj6fjsc2gkce878ukzg6g9wy8cl8p554dlggxd"
	testAlice    = "sei18rszd3tmgpjvjwq2qajtmn5jqvtscd2yuygl4z"
	testBob      = "sei1aan9kqywf4rf274cal0hj6eyly6wu0uv7edxy2"
	testContract = "sei1contract"
)

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

func mustDecodeHex(t *testing.T, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		panic(fmt.Sprintf("invalid hex string: %s", hexStr))
	}
	return b
}

// CreateMockEnclave returns a handle producing structurally valid, unsigned
// attestation documents that embed the caller's user data.
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			nestedDoc := map[string]any{
				"module_id": "test-enclave-12345",
				"digest":    "SHA384",
				"timestamp": uint64(1234567890000),
				"pcrs": map[uint64][]byte{
					0: mustDecodeHex(t, "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57"),
					1: mustDecodeHex(t, "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493"),
					2: mustDecodeHex(t, "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11"),
				},
				"certificate": []byte("test-certificate-data"),
				"cabundle":    [][]byte{[]byte("test-ca-cert")},
				"public_key":  []byte{},
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}
			nestedBytes, err := cbor.Marshal(nestedDoc)
			if err != nil {
				return nil, err
			}
			return cbor.Marshal([]any{
				[]byte{0xa0},     // protected header
				map[string]any{}, // unprotected header
				nestedBytes,      // attestation document
				[]byte{0x04, 0x05, 0x06},
			})
		},
	}
}

func testConfig() Config {
	return Config{
		ListenAddr:  "127.0.0.1:0",
		MaxWorkers:  4,
		ReadTimeout: 5 * time.Second,
		Contract:    testContract,
		Owner:       testOwner,
		Name:        "bidding",
		Denom:       "atom",
		Tick:        "1",
		Commission:  "1",
		Genesis:     []string{testAlice + "=10atom", testBob + "=10atom"},
	}
}

// newTestServer returns a server over a freshly bootstrapped memory store.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop()

	h, err := host.New(store.NewMemory(), core.Identity(cfg.Contract), logger)
	assert.NoError(t, err)
	assert.NoError(t, bootstrap(context.Background(), cfg, h, logger))

	km, err := NewKeyManager()
	assert.NoError(t, err)

	srv := NewServer(cfg, h, km, logger)
	srv.attester = func() (EnclaveAttester, error) {
		return nil, fmt.Errorf("NSM not available in tests")
	}
	srv.now = func() time.Time { return time.Unix(1700000000, 0) }
	return srv
}

// roundTrip sends req over an in-memory connection and decodes the reply
// into out.
func roundTrip(t *testing.T, srv *Server, req any, out any) {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConnection(context.Background(), server)
	}()
	defer func() {
		_ = client.Close()
		<-done
	}()

	assert.NoError(t, json.NewEncoder(client).Encode(req))
	assert.NoError(t, json.NewDecoder(client).Decode(out))
}
