package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainInvocation = "library/invocation/v1"
	DomainCompletion = "library/completion/v1"
	DomainState      = "library/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of an invocation.
// The ID is stable across restarts and replays given the same inputs.
func InvocationID(token string, op Op, caller Identity, args Object, seq int64) (string, error) {
	if args == nil {
		args = Object{}
	}
	canonical, err := MarshalCanonical(Object{
		"token":  token,
		"op":     string(op),
		"caller": string(caller),
		"args":   args,
		"seq":    seq,
	})
	if err != nil {
		return "", fmt.Errorf("InvocationID: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the content-addressed ID of a completion and links
// it to the invocation it completes.
func CompletionID(invocationID string, status Status, result Object, seq int64) (string, error) {
	if result == nil {
		result = Object{}
	}
	canonical, err := MarshalCanonical(Object{
		"invocation_id": invocationID,
		"status":        string(status),
		"result":        result,
		"seq":           seq,
	})
	if err != nil {
		return "", fmt.Errorf("CompletionID: %w", err)
	}
	return hashWithDomain(DomainCompletion, canonical), nil
}

// StateDigest hashes both sequences of a state in positional order.
// Two states with equal digests hold the same books and ownership entries.
func StateDigest(s State) string {
	owners := make([]any, len(s.Owners))
	for i, o := range s.Owners {
		owners[i] = Object{"owner": string(o.Owner), "index": o.RecordIndex}
	}
	books := s.Books
	if books == nil {
		books = []string{}
	}
	canonical, err := MarshalCanonical(Object{"books": books, "owners": owners})
	if err != nil {
		// Only strings and uint32 are involved; marshaling cannot fail.
		panic(fmt.Sprintf("StateDigest: %v", err))
	}
	return hashWithDomain(DomainState, canonical)
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(token string, op Op, caller Identity, args Object, seq int64) string {
	id, err := InvocationID(token, op, caller, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
