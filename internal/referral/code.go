// Package referral implements referral code generation and the referral
// ledger: relationship recording at signup and referrer crediting on the
// referred user's first paid order.
package referral

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodePrefix is the fixed prefix of every referral code.
const CodePrefix = "OPT"

// codeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomLen is the number of random characters after the prefix.
const randomLen = 6

// NewCode generates a referral code: CodePrefix plus six characters from
// the restricted alphabet. Uniqueness is enforced by the store's unique
// index; callers retry on collision.
func NewCode() (string, error) {
	var b strings.Builder
	b.WriteString(CodePrefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < randomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating referral code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidCode reports whether a string has the shape of a referral code.
func ValidCode(code string) bool {
	if len(code) != len(CodePrefix)+randomLen {
		return false
	}
	if !strings.HasPrefix(code, CodePrefix) {
		return false
	}
	for _, c := range code[len(CodePrefix):] {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}
