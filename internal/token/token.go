// Package token models the assets the swap form trades: ERC-20 style
// contracts plus the chain's native coin behind a sentinel value.
package token

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// NativeSentinel marks the chain's native coin. Routers and pools never see
// it: callers must translate it through Wrap before building a path.
const NativeSentinel = "native"

// Token identifies a tradable asset. Address is either a hex contract
// address or NativeSentinel. Display metadata is carried for the UI tiers
// and is irrelevant to quoting.
type Token struct {
	Address string `json:"address" yaml:"address"`
	Symbol  string `json:"symbol" yaml:"symbol"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Icon    string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// IsNative reports whether the token is the native-coin sentinel.
func (t Token) IsNative() bool { return IsNativeAddress(t.Address) }

// IsNativeAddress reports whether addr is the native-coin sentinel.
func IsNativeAddress(addr string) bool {
	return strings.EqualFold(strings.TrimSpace(addr), NativeSentinel)
}

// Wrap resolves a token address to the address routers understand: the
// wrapped-native contract for the sentinel, the token itself otherwise.
func Wrap(addr string, wrappedNative common.Address) common.Address {
	if IsNativeAddress(addr) {
		return wrappedNative
	}
	return common.HexToAddress(addr)
}

// Checksum normalizes a hex address to its EIP-55 checksum form. Rejects
// anything that is not 20 bytes of hex.
func Checksum(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", fmt.Errorf("empty address")
	}
	if strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X") {
		a = a[2:]
	}
	if len(a) != 40 {
		return "", fmt.Errorf("bad hex length: %d", len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		return "", fmt.Errorf("not hex: %w", err)
	}

	lower := strings.ToLower(a)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	hash := h.Sum(nil)
	hexhash := make([]byte, 64)
	hex.Encode(hexhash, hash)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		ch := lower[i]
		if ch >= 'a' && ch <= 'f' {
			var nibble byte
			if hexhash[i] >= '0' && hexhash[i] <= '9' {
				nibble = hexhash[i] - '0'
			} else {
				nibble = 10 + (hexhash[i] - 'a')
			}
			if nibble >= 8 {
				ch -= 'a' - 'A'
			}
		}
		out[i] = ch
	}
	return "0x" + string(out), nil
}

// Valid reports whether addr is the native sentinel or a well-formed hex
// address.
func Valid(addr string) bool {
	if IsNativeAddress(addr) {
		return true
	}
	_, err := Checksum(addr)
	return err == nil
}
