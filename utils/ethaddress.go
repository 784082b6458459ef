package utils

import (
	"encoding/hex"
	"strings"

	"github.com/plutus-market/plutus-server/constdef"

	"golang.org/x/crypto/sha3"
)

// IsChainAddress reports whether s looks like a 0x-prefixed 20-byte hex
// address. Mixed-case addresses must additionally carry a valid EIP-55
// checksum; all-lower or all-upper addresses are accepted as unchecksummed.
func IsChainAddress(s string) bool {
	if len(s) != constdef.ChainAddressLength {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return false
	}
	lower := strings.ToLower(body)
	upper := strings.ToUpper(body)
	if body == lower || body == upper {
		return true
	}
	return checksumAddress(lower) == body
}

// IsTransactionHash reports whether s looks like a 0x-prefixed 32-byte hex
// transaction hash.
func IsTransactionHash(s string) bool {
	if len(s) != constdef.TransactionHashLength {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// checksumAddress applies the EIP-55 mixed-case checksum to an all-lowercase
// 40-char hex address body.
func checksumAddress(lower string) string {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	sum := hasher.Sum(nil)

	out := []byte(lower)
	for i := 0; i < len(out); i++ {
		c := out[i]
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
