// Package wallet validates wallet addresses and resolves the return
// address submitted to the processor. The processor only refunds to
// EVM-style addresses, so Solana-origin wallets map to a configured
// fallback address.
package wallet

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/sha3"

	"NairaOfframp/internal/models"
)

var (
	ErrInvalidEVMAddress    = errors.New("invalid evm address")
	ErrChecksumMismatch     = errors.New("evm address checksum mismatch")
	ErrInvalidSolanaAddress = errors.New("invalid solana address")
	ErrUnknownWalletKind    = errors.New("unknown wallet kind")
	ErrNoFallbackAddress    = errors.New("fallback return address not configured")
)

// NormalizeEVM validates a 0x-prefixed address and returns its EIP-55
// checksummed form. All-lowercase and all-uppercase inputs are accepted;
// mixed-case inputs must carry a correct checksum.
func NormalizeEVM(addr string) (string, error) {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return "", ErrInvalidEVMAddress
	}
	hexPart := addr[2:]
	lower := strings.ToLower(hexPart)
	for _, r := range lower {
		if !isHexDigit(r) {
			return "", ErrInvalidEVMAddress
		}
	}

	checksummed := checksumEVM(lower)
	if hexPart != lower && hexPart != strings.ToUpper(hexPart) && hexPart != checksummed {
		return "", ErrChecksumMismatch
	}
	return "0x" + checksummed, nil
}

// checksumEVM implements the EIP-55 rule: a hex letter is uppercased when
// the matching nibble of keccak256(lowercase address) is >= 8.
func checksumEVM(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i := range out {
		if out[i] < 'a' || out[i] > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = out[i] - 'a' + 'A'
		}
	}
	return string(out)
}

// ValidateSolana checks that addr is a base58 encoding of a 32-byte key.
func ValidateSolana(addr string) error {
	decoded := base58.Decode(addr)
	if len(decoded) != 32 {
		return ErrInvalidSolanaAddress
	}
	return nil
}

// Validate checks an address against the rules of the given wallet kind
// and returns its normalized form.
func Validate(address string, kind models.WalletKind) (string, error) {
	switch kind {
	case models.WalletEVM:
		return NormalizeEVM(address)
	case models.WalletSolana:
		if err := ValidateSolana(address); err != nil {
			return "", err
		}
		return address, nil
	}
	return "", ErrUnknownWalletKind
}

// ResolveReturnAddress picks the processor return address for a binding.
// EVM wallets refund to themselves; Solana wallets refund to the fallback.
func ResolveReturnAddress(b *models.WalletBinding, fallback string) (string, error) {
	switch b.Kind {
	case models.WalletEVM:
		return NormalizeEVM(b.Address)
	case models.WalletSolana:
		if fallback == "" {
			return "", ErrNoFallbackAddress
		}
		return NormalizeEVM(fallback)
	}
	return "", ErrUnknownWalletKind
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
