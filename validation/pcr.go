package validation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

// pcrHexLen is the length of a hex-encoded SHA-384 measurement.
const pcrHexLen = 96

// LoadPCRsFromFile reads the measurements of the ledgerd images a verifier
// is willing to trust. Every PCR must be a hex SHA-384 digest.
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PCR config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var config PCRConfig
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parse PCR config %s: %w", path, err)
	}
	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("PCR config %s lists no sets", path)
	}

	for i := range config.PCRSets {
		set := &config.PCRSets[i]
		for name, value := range map[string]*string{"pcr0": &set.PCR0, "pcr1": &set.PCR1, "pcr2": &set.PCR2} {
			normalized, err := normalizePCR(*value)
			if err != nil {
				return nil, fmt.Errorf("PCR set #%d %s: %w", i, name, err)
			}
			*value = normalized
		}
	}
	return config.PCRSets, nil
}

func normalizePCR(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if len(value) != pcrHexLen {
		return "", fmt.Errorf("expected %d hex characters, got %d", pcrHexLen, len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return "", fmt.Errorf("not hex: %w", err)
	}
	return value, nil
}

// Matches reports whether the image, kernel and application measurements
// all equal the set.
func (s PCRSet) Matches(pcrs ledgerapi.PCRs) bool {
	return strings.EqualFold(pcrs.ImageFileHash, s.PCR0) &&
		strings.EqualFold(pcrs.KernelHash, s.PCR1) &&
		strings.EqualFold(pcrs.ApplicationHash, s.PCR2)
}

// ValidatePCRs returns the index of the first known set matching pcrs, or
// false and -1.
func ValidatePCRs(pcrs ledgerapi.PCRs, knownSets []PCRSet) (bool, int) {
	i := slices.IndexFunc(knownSets, func(s PCRSet) bool { return s.Matches(pcrs) })
	return i >= 0, i
}
