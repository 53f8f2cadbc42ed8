package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors from EIP-55.
var checksummed = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestChecksumAddress(t *testing.T) {
	for _, addr := range checksummed {
		assert.Equal(t, addr, ChecksumAddress(strings.ToLower(addr[2:])))
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		chain   string
		addr    string
		want    string
		wantErr error
	}{
		{"valid checksum", "ethereum", checksummed[0], checksummed[0], nil},
		{"lowercase accepted", "polygon", strings.ToLower(checksummed[1]), checksummed[1], nil},
		{"uppercase body accepted", "base", "0x" + strings.ToUpper(checksummed[2][2:]), checksummed[2], nil},
		{"surrounding space", "ethereum", "  " + checksummed[3] + "\n", checksummed[3], nil},
		{"bad checksum", "ethereum", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "", ErrBadChecksum},
		{"too short", "ethereum", "0x1234", "", ErrBadAddress},
		{"not hex", "ethereum", "0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "", ErrBadAddress},
		{"missing prefix", "ethereum", "005aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "", ErrBadAddress},
		{"unknown chain", "bitcoin", checksummed[0], "", ErrUnknownChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.chain, tt.addr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
