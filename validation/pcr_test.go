package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/bidledger/ledgerapi"
)

func TestValidatePCRs(t *testing.T) {
	known := []PCRSet{
		{PCR0: "00", PCR1: "11", PCR2: "22", CommitHash: "old"},
		testPCRs,
	}

	tests := []struct {
		name      string
		pcrs      ledgerapi.PCRs
		wantMatch bool
		wantIndex int
	}{
		{
			name:      "matches second set",
			pcrs:      ledgerapi.PCRs{ImageFileHash: "aabb", KernelHash: "cc", ApplicationHash: "dd"},
			wantMatch: true,
			wantIndex: 1,
		},
		{
			name:      "application hash differs",
			pcrs:      ledgerapi.PCRs{ImageFileHash: "aabb", KernelHash: "cc", ApplicationHash: "ee"},
			wantIndex: -1,
		},
		{
			name:      "empty",
			pcrs:      ledgerapi.PCRs{},
			wantIndex: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, index := ValidatePCRs(tt.pcrs, known)
			check.Equal(t, tt.wantMatch, match)
			check.Equal(t, tt.wantIndex, index)
		})
	}
}

func TestValidatePCRs_CaseInsensitive(t *testing.T) {
	match, index := ValidatePCRs(ledgerapi.PCRs{ImageFileHash: "AABB", KernelHash: "CC", ApplicationHash: "dd"}, []PCRSet{testPCRs})
	check.True(t, match)
	check.Equal(t, 0, index)
}

func writePCRConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcrs.json")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPCRsFromFile(t *testing.T) {
	pcr0 := strings.Repeat("a1", 48)
	pcr1 := strings.Repeat("b2", 48)
	pcr2 := strings.Repeat("c3", 48)

	path := writePCRConfig(t, fmt.Sprintf(`{"pcr_sets":[{"pcr0":%q,"pcr1":%q,"pcr2":%q,"commit_hash":"0123abc"}]}`,
		strings.ToUpper(pcr0), pcr1, pcr2))

	sets, err := LoadPCRsFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(sets))
	check.Equal(t, PCRSet{PCR0: pcr0, PCR1: pcr1, PCR2: pcr2, CommitHash: "0123abc"}, sets[0])
}

func TestLoadPCRsFromFile_Invalid(t *testing.T) {
	valid := strings.Repeat("ab", 48)

	tests := []struct {
		name    string
		content string
	}{
		{name: "no sets", content: `{"pcr_sets":[]}`},
		{name: "short pcr", content: fmt.Sprintf(`{"pcr_sets":[{"pcr0":"aabb","pcr1":%q,"pcr2":%q}]}`, valid, valid)},
		{name: "not hex", content: fmt.Sprintf(`{"pcr_sets":[{"pcr0":%q,"pcr1":%q,"pcr2":%q}]}`, strings.Repeat("zz", 48), valid, valid)},
		{name: "unknown field", content: fmt.Sprintf(`{"pcr_sets":[{"pcr0":%q,"pcr1":%q,"pcr2":%q,"pcr8":""}]}`, valid, valid, valid)},
		{name: "not json", content: `pcr0=ab`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPCRsFromFile(writePCRConfig(t, tt.content))
			check.Error(t, err)
		})
	}

	_, err := LoadPCRsFromFile(filepath.Join(t.TempDir(), "missing.json"))
	check.Error(t, err)
}
