/**
 * @description
 * BankTransaction is a raw transaction as delivered by a bank connection, plus
 * the two content hashes the pipeline is built on:
 *
 *   - the identity hash deduplicates repeated imports of the same transaction at
 *     storage time (together with a per-hash sequence number for same-day twins);
 *   - the transfer hash identifies both legs of one internal transfer, hashing
 *     identically regardless of direction, sign or IBAN formatting noise.
 *
 * Both are SHA-256 over a canonical field encoding and MUST stay bit-stable:
 * stored data from earlier versions is matched against freshly computed hashes.
 *
 * @dependencies
 * - crypto/sha256, encoding/hex: Stable 64-char lowercase hex content hashes.
 * - github.com/shopspring/decimal: Canonical 2-digit amount rendering.
 */

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// identityPurposeLength caps how much of the purpose participates in the
// identity hash; banks append varying noise past this point.
const identityPurposeLength = 50

// BankTransaction is one raw transaction from a bank feed. Amount is signed:
// negative means money left the account.
type BankTransaction struct {
	BookingDate       time.Time
	Amount            decimal.Decimal
	Currency          Currency
	Purpose           string
	CounterpartyName  string
	CounterpartyIBAN  string
	EndToEndReference string
}

// NormalizePurpose collapses all internal whitespace runs to single spaces and
// trims the ends, so formatting differences between fetches do not change the
// identity hash.
func NormalizePurpose(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// IdentityHash computes the stable content hash for deduplication, scoped to
// accountRef (normally the owning account IBAN). Fields are joined with '|' in
// a fixed order; absent fields hash as empty strings. The purpose cap counts
// runes, not bytes, so a multi-byte character at the boundary is kept or
// dropped whole and the hashed prefix stays valid UTF-8.
func (b BankTransaction) IdentityHash(accountRef string) string {
	purpose := NormalizePurpose(b.Purpose)
	if runes := []rune(purpose); len(runes) > identityPurposeLength {
		purpose = string(runes[:identityPurposeLength])
	}
	parts := []string{
		accountRef,
		b.BookingDate.Format("2006-01-02"),
		b.Amount.StringFixed(2),
		b.EndToEndReference,
		NormalizeIBAN(b.CounterpartyIBAN),
		purpose,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ComputeTransferHash computes the canonical, direction-independent hash
// identifying one internal transfer between two of the user's accounts. The
// IBAN pair is sorted after normalization and the amount is rendered positive
// at 2 digits, so either leg and any sign convention hash identically.
func ComputeTransferHash(ibanA, ibanB string, bookingDate time.Time, amount decimal.Decimal) string {
	a := NormalizeIBAN(ibanA)
	b := NormalizeIBAN(ibanB)
	if b < a {
		a, b = b, a
	}
	parts := []string{
		a,
		b,
		bookingDate.Format("2006-01-02"),
		amount.Abs().StringFixed(2),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// StoredBankTransaction is a bank transaction after the dedup boundary: it has
// an identity, a sequence number, and flags describing whether this batch saw
// it for the first time and whether the accounting side already imported it.
type StoredBankTransaction struct {
	ID           uuid.UUID
	AccountIBAN  string
	IdentityHash string
	HashSequence int
	BankTransaction
	IsNew      bool
	IsImported bool
	CreatedAt  time.Time
}
