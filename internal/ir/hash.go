package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the hashed
// shape to change without colliding with older ledgers.
const (
	DomainRecord = "mondai/record/v1"
	DomainPolicy = "mondai/policy/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the reconciliation-relevant shape of a record: identity,
// level, section numbering, parts, question counts and statistics. Question
// payloads are not part of it, so content edits do not change it.
func Fingerprint(r *Record) (string, error) {
	canonical, err := MarshalCanonical(fingerprintShape(r))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return HashWithDomain(DomainRecord, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(r *Record) string {
	fp, err := Fingerprint(r)
	if err != nil {
		panic(err)
	}
	return fp
}

func fingerprintShape(r *Record) map[string]any {
	sections := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		sections[i] = map[string]any{
			"mondai":    s.Mondai,
			"part":      s.Part,
			"questions": s.QuestionCount(),
		}
	}
	shape := map[string]any{
		"id":       r.ID,
		"level":    r.Level,
		"type":     r.Type,
		"sections": sections,
	}
	if r.Statistics != nil {
		stats := make(map[string]any, len(r.Statistics.ByPart)+2)
		for c, n := range r.Statistics.ByPart {
			stats[string(c)] = n
		}
		if r.Statistics.TotalQuestions != nil {
			stats["total_questions"] = *r.Statistics.TotalQuestions
		}
		if r.Statistics.TotalSections != nil {
			stats["total_sections"] = *r.Statistics.TotalSections
		}
		shape["statistics"] = stats
	}
	return shape
}
