package fql

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSubscription prefixes subscription fingerprints.
// The version suffix allows a future change of canonical form.
const DomainSubscription = "fql/subscription/v1"

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of a subscription.
//
// It hashes the canonical text, so two subscriptions that differ only in
// whitespace or redundant parentheses share a fingerprint. String literals
// are NFC-normalized by the lexer, so Unicode composition in the source does
// not change it either; paths are hashed as written.
func Fingerprint(g *Group) (string, error) {
	canonical, err := Generate(g)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainSubscription, []byte(canonical)), nil
}

// FingerprintString parses input and fingerprints the resulting AST.
func FingerprintString(input string) (string, error) {
	g, err := Parse(input)
	if err != nil {
		return "", err
	}
	return Fingerprint(g)
}
