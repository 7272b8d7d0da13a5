package domain

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

func sampleBankTransaction() BankTransaction {
	return BankTransaction{
		BookingDate:       time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:            decimal.RequireFromString("-42.50"),
		Currency:          EUR,
		Purpose:           "REWE SAGT DANKE 44123",
		CounterpartyName:  "REWE Markt",
		CounterpartyIBAN:  "DE02120300000000202051",
		EndToEndReference: "E2E-9981",
	}
}

func TestIdentityHash_StableAndWellFormed(t *testing.T) {
	btx := sampleBankTransaction()

	h1 := btx.IdentityHash("DE89370400440532013000")
	h2 := btx.IdentityHash("DE89370400440532013000")
	if h1 != h2 {
		t.Fatalf("identity hash must be deterministic: %s vs %s", h1, h2)
	}
	if !hexHash.MatchString(h1) {
		t.Fatalf("expected 64-char lowercase hex, got %q", h1)
	}
}

func TestIdentityHash_SensitiveToContent(t *testing.T) {
	base := sampleBankTransaction()
	baseHash := base.IdentityHash("DE89370400440532013000")

	changed := base
	changed.Amount = decimal.RequireFromString("-42.51")
	if changed.IdentityHash("DE89370400440532013000") == baseHash {
		t.Fatal("amount change must change the identity hash")
	}

	changed = base
	changed.BookingDate = base.BookingDate.AddDate(0, 0, 1)
	if changed.IdentityHash("DE89370400440532013000") == baseHash {
		t.Fatal("date change must change the identity hash")
	}

	if base.IdentityHash("DE89370400440532013001") == baseHash {
		t.Fatal("account reference must scope the identity hash")
	}
}

func TestIdentityHash_IgnoresFormattingNoise(t *testing.T) {
	base := sampleBankTransaction()
	noisy := base
	noisy.Purpose = "  REWE   SAGT\tDANKE   44123 "
	noisy.CounterpartyIBAN = "de02 1203 0000 0000 2020 51"

	if base.IdentityHash("X") != noisy.IdentityHash("X") {
		t.Fatal("whitespace and IBAN formatting must not change the identity hash")
	}
}

func TestIdentityHash_PurposeTruncatedAt50(t *testing.T) {
	base := sampleBankTransaction()
	base.Purpose = strings.Repeat("a", 50)

	longer := base
	longer.Purpose = strings.Repeat("a", 50) + " trailing noise appended by the bank"

	if base.IdentityHash("X") != longer.IdentityHash("X") {
		t.Fatal("only the first 50 purpose characters participate in the hash")
	}

	different := base
	different.Purpose = strings.Repeat("b", 50)
	if base.IdentityHash("X") == different.IdentityHash("X") {
		t.Fatal("differing purpose prefixes must produce different hashes")
	}
}

func TestIdentityHash_PurposeTruncationCountsRunes(t *testing.T) {
	// 25 runes but 50 bytes: byte-based truncation would cut everything that
	// follows and could split a multi-byte character.
	prefix := strings.Repeat("ä", 25)

	one := sampleBankTransaction()
	one.Purpose = prefix + "LIEFERANT EINS"
	two := one
	two.Purpose = prefix + "LIEFERANT ZWEI"

	if one.IdentityHash("X") == two.IdentityHash("X") {
		t.Fatal("purpose differences within the first 50 runes must change the hash")
	}

	exact := one
	exact.Purpose = prefix + strings.Repeat("x", 25)
	padded := exact
	padded.Purpose = exact.Purpose + " trailing noise appended by the bank"
	if exact.IdentityHash("X") != padded.IdentityHash("X") {
		t.Fatal("runes past the first 50 must not participate in the hash")
	}
}

func TestComputeTransferHash_DirectionIndependent(t *testing.T) {
	date := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("200.00")

	h1 := ComputeTransferHash("DE89370400440532013000", "NL91ABNA0417164300", date, amount)
	h2 := ComputeTransferHash("NL91ABNA0417164300", "DE89370400440532013000", date, amount.Neg())
	if h1 != h2 {
		t.Fatalf("transfer hash must be direction- and sign-independent: %s vs %s", h1, h2)
	}
	if !hexHash.MatchString(h1) {
		t.Fatalf("expected 64-char lowercase hex, got %q", h1)
	}

	// Formatting noise on either IBAN does not matter.
	h3 := ComputeTransferHash("de89 3704 0044 0532 0130 00", "nl91 abna 0417 1643 00", date, decimal.RequireFromString("200"))
	if h3 != h1 {
		t.Fatalf("IBAN formatting and amount rendering must not change the hash: %s vs %s", h3, h1)
	}
}

func TestComputeTransferHash_DistinguishesTransfers(t *testing.T) {
	date := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("200.00")

	base := ComputeTransferHash("DE89370400440532013000", "NL91ABNA0417164300", date, amount)
	if ComputeTransferHash("DE89370400440532013000", "NL91ABNA0417164300", date.AddDate(0, 0, 1), amount) == base {
		t.Fatal("different date must change the hash")
	}
	if ComputeTransferHash("DE89370400440532013000", "NL91ABNA0417164300", date, decimal.RequireFromString("200.01")) == base {
		t.Fatal("different amount must change the hash")
	}
}

func TestNormalizePurpose(t *testing.T) {
	if got := NormalizePurpose("  a \t b\n\nc  "); got != "a b c" {
		t.Fatalf("NormalizePurpose: got %q", got)
	}
}
