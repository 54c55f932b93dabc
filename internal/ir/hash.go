package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRule        = "sinc/rule/v1"
	DomainEvidence    = "sinc/evidence/v1"
	DomainFingerprint = "sinc/fingerprint/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes the canonical form of v under domain.
func ContentHash(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash(%s): failed to marshal: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// StructureValue converts a rule structure into canonical form.
func StructureValue(s Structure) IRArray {
	arr := make(IRArray, len(s))
	for i, p := range s {
		args := make(IRArray, len(p.Args))
		for j, a := range p.Args {
			args[j] = IRInt(int64(a))
		}
		arr[i] = IRObject{
			"functor": IRInt(p.Functor),
			"args":    args,
		}
	}
	return arr
}

// RuleID computes the content-addressed id of a mined rule.
// The same structure mined in the same run always gets the same id;
// seq distinguishes repeated discoveries across iterations.
func RuleID(runID string, s Structure, seq int64) (string, error) {
	obj := IRObject{
		"run_id":    IRString(runID),
		"structure": StructureValue(s),
		"seq":       IRInt(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RuleID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRule, canonical), nil
}

// EvidenceID computes the id of one grounding of a rule.
func EvidenceID(ruleID string, grounding [][]int) (string, error) {
	rows := make(IRArray, len(grounding))
	for i, row := range grounding {
		rows[i] = IntArray(row)
	}
	obj := IRObject{
		"rule_id":   IRString(ruleID),
		"grounding": rows,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EvidenceID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvidence, canonical), nil
}

// MustRuleID is like RuleID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRuleID(runID string, s Structure, seq int64) string {
	id, err := RuleID(runID, s, seq)
	if err != nil {
		panic(err)
	}
	return id
}
