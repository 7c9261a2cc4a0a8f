package wallet

import (
	"errors"
	"strings"
	"testing"

	"NairaOfframp/internal/models"
)

// Checksummed addresses from the EIP-55 reference vectors.
var checksummed = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestNormalizeEVM_Checksummed(t *testing.T) {
	for _, addr := range checksummed {
		got, err := NormalizeEVM(addr)
		if err != nil {
			t.Fatalf("NormalizeEVM(%s) error: %v", addr, err)
		}
		if got != addr {
			t.Fatalf("NormalizeEVM(%s) = %s, want unchanged", addr, got)
		}
	}
}

func TestNormalizeEVM_Lowercase(t *testing.T) {
	for _, addr := range checksummed {
		got, err := NormalizeEVM(strings.ToLower(addr))
		if err != nil {
			t.Fatalf("NormalizeEVM error: %v", err)
		}
		if got != addr {
			t.Fatalf("NormalizeEVM(lower) = %s, want %s", got, addr)
		}
	}
}

func TestNormalizeEVM_BadChecksum(t *testing.T) {
	// Flip the case of one letter in a checksummed address.
	addr := "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if _, err := NormalizeEVM(addr); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestNormalizeEVM_Invalid(t *testing.T) {
	cases := []string{
		"",
		"0x123",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00",
	}
	for _, addr := range cases {
		if _, err := NormalizeEVM(addr); !errors.Is(err, ErrInvalidEVMAddress) {
			t.Fatalf("NormalizeEVM(%q): expected ErrInvalidEVMAddress, got %v", addr, err)
		}
	}
}

func TestValidateSolana(t *testing.T) {
	// The system program id decodes to 32 zero bytes.
	if err := ValidateSolana("11111111111111111111111111111111"); err != nil {
		t.Fatalf("ValidateSolana error: %v", err)
	}
	for _, addr := range []string{"", "abc", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"} {
		if err := ValidateSolana(addr); !errors.Is(err, ErrInvalidSolanaAddress) {
			t.Fatalf("ValidateSolana(%q): expected ErrInvalidSolanaAddress, got %v", addr, err)
		}
	}
}

func TestResolveReturnAddress(t *testing.T) {
	fallback := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	evm := &models.WalletBinding{Kind: models.WalletEVM, Address: strings.ToLower(checksummed[1])}
	got, err := ResolveReturnAddress(evm, fallback)
	if err != nil {
		t.Fatalf("ResolveReturnAddress error: %v", err)
	}
	if got != checksummed[1] {
		t.Fatalf("evm return = %s, want %s", got, checksummed[1])
	}

	sol := &models.WalletBinding{Kind: models.WalletSolana, Address: "11111111111111111111111111111111"}
	got, err = ResolveReturnAddress(sol, fallback)
	if err != nil {
		t.Fatalf("ResolveReturnAddress error: %v", err)
	}
	if got != checksummed[0] {
		t.Fatalf("solana return = %s, want fallback %s", got, checksummed[0])
	}

	if _, err := ResolveReturnAddress(sol, ""); !errors.Is(err, ErrNoFallbackAddress) {
		t.Fatalf("expected ErrNoFallbackAddress, got %v", err)
	}
}
