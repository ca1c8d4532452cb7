//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseAddress checks that parsing never panics and that accepted addresses round-trip.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	f.Add("did:tc:alice")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		addr, err := ParseAddress(input)
		if err == nil {
			roundTrip, err2 := ParseAddress(addr.String())
			if err2 != nil {
				t.Errorf("valid address failed round-trip: %v", err2)
			}
			if roundTrip != addr {
				t.Error("round-trip changed address value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

func FuzzParseLedgerIDs(f *testing.F) {
	f.Add("1")
	f.Add("")
	f.Add("0")

	f.Fuzz(func(t *testing.T, input string) {
		cid, errCred := ParseCredentialID(input)
		rid, errReport := ParseReportID(input)
		if (errCred == nil) != (errReport == nil) {
			t.Errorf("inconsistent validation for %q", input)
		}
		if errCred == nil && uint64(cid) != uint64(rid) {
			t.Errorf("ids disagree for %q", input)
		}
	})
}
