package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"4100 *** BLOCK COUNTY CENTER DR", "4100 COUNTY CENTER DR"},
		{"100 BLK OF MAIN ST", "100 MAIN ST"},
		{"41XX MAIN ST", "4100 MAIN ST"},
		{"41** MAIN ST", "4100 MAIN ST"},
		{"XXX ROSE AVE", "ROSE AVE"},
		{"  23000   ALESSANDRO BLVD ", "23000 ALESSANDRO BLVD"},
		{"MAIN ST / 3RD ST", "MAIN ST / 3RD ST"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanAddress(tc.in), tc.in)
	}
}

func TestRejectAddress_Unusable(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"unknown",
		"UNKNOWN",
		"Confidential",
		"CONFIDENTIAL LOCATION",
		"Address Withheld",
		"ADDRESS WITHHELD",
		"1 A",
		"*** BLOCK",
		"4100 *** BLOCK",
		"12345",
	} {
		err := RejectAddress(in)
		assert.ErrorIs(t, err, ErrInputRejected, "%q should be rejected", in)
	}
}

func TestRejectAddress_Usable(t *testing.T) {
	for _, in := range []string{
		"4100 *** BLOCK COUNTY CENTER DR",
		"100 MAIN ST",
		"HWY 74 / ORTEGA HWY",
		"I15 SB AT RANCHO CALIFORNIA RD",
	} {
		assert.NoError(t, RejectAddress(in), in)
	}
}
