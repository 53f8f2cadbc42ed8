// Package wallet validates crypto wallet addresses for the wallet panel.
package wallet

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrBadAddress   = errors.New("address must be 0x followed by 40 hex characters")
	ErrBadChecksum  = errors.New("address checksum mismatch")
	ErrUnknownChain = errors.New("unsupported chain")
)

// EVM chains share the same address format.
var evmChains = map[string]bool{
	"ethereum": true,
	"polygon":  true,
	"arbitrum": true,
	"optimism": true,
	"base":     true,
}

func SupportedChain(chain string) bool {
	return evmChains[strings.ToLower(chain)]
}

// NormalizeAddress validates addr for chain and returns its EIP-55
// checksummed form. Mixed-case input must carry a valid checksum; all-lower
// and all-upper input is accepted as is.
func NormalizeAddress(chain, addr string) (string, error) {
	if !SupportedChain(chain) {
		return "", ErrUnknownChain
	}
	addr = strings.TrimSpace(addr)
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return "", ErrBadAddress
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", ErrBadAddress
	}

	checksummed := ChecksumAddress(body)
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && checksummed != addr {
		return "", ErrBadChecksum
	}
	return checksummed, nil
}

// ChecksumAddress applies EIP-55 mixed-case encoding to a 40-char hex body.
func ChecksumAddress(body string) string {
	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 32
		}
	}
	return "0x" + string(out)
}
