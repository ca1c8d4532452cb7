package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustledger/pkg/domain-errors"
)

// TestParseAddress_Invariants validates the parsing invariant:
// "addresses are trimmed, non-empty, bounded and free of control characters"
func TestParseAddress_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAddress("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		addr, err := ParseAddress("  0xAlice ")
		require.NoError(t, err)
		assert.Equal(t, Address("0xAlice"), addr)
	})

	t.Run("accepts typical account identifiers", func(t *testing.T) {
		for _, in := range []string{"0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "alice", "did:tc:issuer-1"} {
			addr, err := ParseAddress(in)
			require.NoError(t, err)
			assert.Equal(t, in, addr.String())
		}
	})
}

func TestParseAddress_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Null byte injection", "alice\x00admin", true},
		{"Embedded newline", "alice\nadmin", true},
		{"Inner space", "alice admin", true},
		{"Unicode zero-width space", "alice\u200Badmin", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},
		{"Valid", "0xabc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestLedgerIDs_ConsistentBehavior ensures credential and report ids parse identically.
func TestLedgerIDs_ConsistentBehavior(t *testing.T) {
	invalidInputs := []string{"", "0", "-1", "abc", "1.5", "18446744073709551616"}
	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errCred := ParseCredentialID(input)
			_, errReport := ParseReportID(input)
			require.Error(t, errCred)
			require.Error(t, errReport)
		})
	}

	cid, err := ParseCredentialID("42")
	require.NoError(t, err)
	assert.Equal(t, CredentialID(42), cid)
	assert.Equal(t, "42", cid.String())

	rid, err := ParseReportID(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, ReportID(7), rid)
}
