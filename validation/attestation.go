package validation

import (
	"fmt"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

// validateCommonAttestation runs the checks shared by every attestation:
// enclave measurements, certificate chain and COSE signature.
func validateCommonAttestation(coseBytes ledgerapi.COSE, doc ledgerapi.AttestationDoc, knownPCRs []PCRSet) *BaseValidationResult {
	result := &BaseValidationResult{ValidationDetails: []string{}}
	note := func(format string, args ...any) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(format, args...))
	}

	if ok, i := ValidatePCRs(doc.PCRs, knownPCRs); ok {
		result.PCRsValid = true
		note("PCR measurements match set #%d (commit: %s)", i, knownPCRs[i].CommitHash)
	} else {
		note("PCR measurements unknown: PCR0=%s PCR1=%s PCR2=%s",
			doc.PCRs.ImageFileHash, doc.PCRs.KernelHash, doc.PCRs.ApplicationHash)
	}

	switch {
	case doc.Certificate == "":
		note("Missing certificate")
	case len(doc.CABundle) == 0:
		note("Missing CA bundle")
	default:
		if err := ValidateCertificateChain(doc.Certificate, doc.CABundle, doc.Timestamp); err != nil {
			note("Certificate chain invalid: %v", err)
		} else {
			result.CertificateValid = true
			note("Certificate chain verified against AWS Nitro root")
		}
	}

	if err := VerifyCOSESignature(coseBytes, doc.Certificate); err != nil {
		note("COSE signature invalid: %v", err)
	} else {
		result.SignatureValid = true
		note("COSE signature verified")
	}

	return result
}
