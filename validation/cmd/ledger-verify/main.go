// Command ledger-verify checks ledgerd output offline: the attestation of
// the receipt signing key, and settlement receipts signed with that key.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudx-io/bidledger/ledgerapi"
	"github.com/cloudx-io/bidledger/validation"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

// plainTextHandler prints bare messages, one per line.
type plainTextHandler struct{}

func (*plainTextHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (*plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(os.Stdout, r.Message)
	return err
}

func (h *plainTextHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *plainTextHandler) WithGroup(_ string) slog.Handler { return h }

var logger = slog.New(&plainTextHandler{})

// check is one named boolean shown in the summary.
type check struct {
	name string
	ok   bool
}

// report is the common shape of both subcommands' results.
type report struct {
	title   string
	checks  []check
	details []string
	valid   bool
	format  string
	// payload is set for receipts whose signature verified.
	payload *ledgerapi.SettlementPayload
}

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(exitError)
	}

	var (
		rep *report
		err error
	)
	switch os.Args[1] {
	case "key":
		rep, err = runKey(os.Args[2:])
	case "receipt":
		rep, err = runReceipt(os.Args[2:])
	case "help", "-h", "--help":
		showUsage()
		os.Exit(exitValid)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		showUsage()
		os.Exit(exitError)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(exitValid)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	if rep.format == "json" {
		if err := outputJSON(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			os.Exit(exitError)
		}
	} else {
		outputText(rep)
	}

	if !rep.valid {
		os.Exit(exitInvalid)
	}
	os.Exit(exitValid)
}

func showUsage() {
	logger.Info("ledger-verify checks ledgerd receipts and receipt key attestations.")
	logger.Info("")
	logger.Info("Usage:")
	logger.Info("  ledger-verify key --attestation <path> --public-key <pem> --pcrs <path> [--format text|json]")
	logger.Info("  ledger-verify receipt --receipt <path> --public-key <pem> [--format text|json]")
	logger.Info("")
	logger.Info("  key      Validate the key_request response: PCRs, AWS Nitro certificate chain,")
	logger.Info("           attestation signature, attested key and purpose.")
	logger.Info("  receipt  Validate a close response or bare receipt (cose_base64 or cose_gzip):")
	logger.Info("           signature, escrow digest, settlement hash and outcome consistency.")
	logger.Info("")
	logger.Info("Exit Codes:")
	logger.Info("  0 - Validation passed")
	logger.Info("  1 - Validation failed")
	logger.Info("  2 - Invalid input or runtime error")
}

func runKey(args []string) (*report, error) {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	attestationPath := fs.String("attestation", "", "Path to key_request response JSON (required)")
	publicKeyPath := fs.String("public-key", "", "Path to receipt public key PEM (required)")
	pcrsPath := fs.String("pcrs", "", "Path to known PCR sets JSON (required)")
	format := fs.String("format", "text", "Output format: text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *attestationPath == "" || *publicKeyPath == "" || *pcrsPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("--attestation, --public-key and --pcrs are required")
	}

	var keyResponse ledgerapi.KeyResponse
	if err := readJSON(*attestationPath, &keyResponse); err != nil {
		return nil, err
	}
	if keyResponse.AttestationCOSEBase64 == "" {
		return nil, fmt.Errorf("key response has no attestation_cose_base64; ledgerd ran outside an enclave")
	}
	publicKey, err := os.ReadFile(*publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	knownPCRs, err := validation.LoadPCRsFromFile(*pcrsPath)
	if err != nil {
		return nil, err
	}

	result, err := validation.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, string(publicKey), knownPCRs)
	if err != nil {
		return nil, err
	}
	return &report{
		title: "Receipt Key Attestation",
		checks: []check{
			{"PCRs Valid", result.PCRsValid},
			{"Certificate Valid", result.CertificateValid},
			{"Signature Valid", result.SignatureValid},
			{"Public Key Match", result.PublicKeyMatch},
			{"Purpose Valid", result.PurposeValid},
		},
		details: result.ValidationDetails,
		valid:   result.IsValid(),
		format:  *format,
	}, nil
}

func runReceipt(args []string) (*report, error) {
	fs := flag.NewFlagSet("receipt", flag.ContinueOnError)
	receiptPath := fs.String("receipt", "", "Path to close response or receipt JSON (required)")
	publicKeyPath := fs.String("public-key", "", "Path to receipt public key PEM (required)")
	format := fs.String("format", "text", "Output format: text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *receiptPath == "" || *publicKeyPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("--receipt and --public-key are required")
	}

	receipt, err := readReceipt(*receiptPath)
	if err != nil {
		return nil, err
	}
	publicKey, err := os.ReadFile(*publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	result, err := validation.VerifyReceipt(receipt, string(publicKey))
	if err != nil {
		return nil, err
	}
	return &report{
		title: "Settlement Receipt",
		checks: []check{
			{"Signature Valid", result.SignatureValid},
			{"Escrow Digest Valid", result.EscrowDigestValid},
			{"Settlement Hash Valid", result.SettlementHashValid},
			{"Outcome Consistent", result.OutcomeConsistent},
		},
		details: result.ValidationDetails,
		valid:   result.IsValid(),
		format:  *format,
		payload: result.Payload,
	}, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// readReceipt accepts either a full execute response or a bare receipt.
func readReceipt(path string) (*ledgerapi.SettlementReceipt, error) {
	var resp ledgerapi.ExecuteResponse
	if err := readJSON(path, &resp); err != nil {
		return nil, err
	}
	if resp.Receipt != nil && hasSignedMessage(resp.Receipt) {
		return resp.Receipt, nil
	}

	var receipt ledgerapi.SettlementReceipt
	if err := readJSON(path, &receipt); err != nil {
		return nil, err
	}
	if !hasSignedMessage(&receipt) {
		return nil, fmt.Errorf("%s holds no receipt", path)
	}
	return &receipt, nil
}

func hasSignedMessage(r *ledgerapi.SettlementReceipt) bool {
	return r.COSEBase64 != "" || r.COSEGzip != ""
}

func outputText(rep *report) {
	logger.Info(rep.title)
	logger.Info("")

	if p := rep.payload; p != nil {
		logger.Info(fmt.Sprintf("Auction %q (%s) owned by %s", p.Auction, p.Status, p.Owner))
		if p.Winner != "" {
			logger.Info(fmt.Sprintf("Winner %s, payout %s, %d bidders", p.Winner, p.Payout, len(p.Escrow)))
		} else {
			logger.Info("Closed without bids")
		}
		logger.Info("")
	}

	logger.Info("Details:")
	for _, d := range rep.details {
		logger.Info("  " + d)
	}
	logger.Info("")

	logger.Info("Summary:")
	for _, c := range rep.checks {
		logger.Info(fmt.Sprintf("  %-22s %v", c.name+":", c.ok))
	}
	logger.Info("")

	if rep.valid {
		logger.Info("VALIDATION: ✓ PASSED")
	} else {
		logger.Info("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(rep *report) error {
	checks := make(map[string]bool, len(rep.checks))
	for _, c := range rep.checks {
		checks[c.name] = c.ok
	}
	output := map[string]any{
		"valid":   rep.valid,
		"checks":  checks,
		"details": rep.details,
	}
	if rep.payload != nil {
		output["payload"] = rep.payload
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	logger.Info(string(data))
	return nil
}
