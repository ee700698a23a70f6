// Package state implements the state token codec (spec §4.2, C2): a
// tamper-evident-looking but only obfuscated marker that records how far
// one report has been tracked in one tracker, embeddable inside a
// platform-visible comment.
//
// Structurally this package mirrors the teacher's internal/crypto
// package (Encrypt/Decrypt/DeriveKey, a prefix-wrapped envelope, and
// table-driven round-trip tests) — see state_test.go. The algorithm
// itself is not the teacher's AES-256-GCM: the spec mandates a
// key-stretched XOR keystream for wire compatibility with state tokens
// already written into existing platform logs (Design Notes §9). As the
// spec's security note states, this is obfuscation, not authenticated
// encryption, and decoded state must never drive authorization
// decisions — only cache-coherence hints (spec §4.2, §8 boundary
// behaviors).
package state

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
)

// envelopePattern matches the sentinel-wrapped token anywhere in
// surrounding text (spec §6 "State token envelope").
var envelopePattern = regexp.MustCompile(`\[YWH2BT:S:([A-Za-z0-9+/=]+)\]`)

const (
	envelopePrefix = "[YWH2BT:S:"
	envelopeSuffix = "]"
)

// DeriveKey derives the XOR keystream key from a report id. Different
// reports use different keys; a token encoded for one report cannot be
// decoded under another report's key (spec §4.2 "Key derivation", P5).
func DeriveKey(reportID string) []byte {
	sum := sha256.Sum256([]byte(reportID))
	return sum[:]
}

// envelope is the canonical (class_name, field_map) pair the spec
// requires to be serialized as a JSON array before encryption.
type envelope struct {
	Class  string
	Fields json.RawMessage
}

func (e envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]json.RawMessage{
		mustMarshal(e.Class),
		e.Fields,
	})
}

func (e *envelope) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	var class string
	if err := json.Unmarshal(pair[0], &class); err != nil {
		return err
	}
	e.Class = class
	e.Fields = pair[1]
	return nil
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// xorKeystream XORs data against key, repeating key as needed (spec
// §4.2: "byte i of ciphertext = byte i of plaintext XOR byte i mod |key|
// of key bytes"). The same function encrypts and decrypts.
func xorKeystream(data, key []byte) []byte {
	if len(key) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Encode serializes (className, fields) as the canonical JSON array,
// XOR-encrypts it under the report-id-derived key, base64-encodes the
// result and wraps it in the sentinel envelope.
func Encode(reportID string, className string, fields any) (string, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal state fields: %w", err)
	}

	plaintext, err := json.Marshal(envelope{Class: className, Fields: fieldsJSON})
	if err != nil {
		return "", fmt.Errorf("marshal state envelope: %w", err)
	}

	key := DeriveKey(reportID)
	ciphertext := xorKeystream(plaintext, key)
	b64 := base64.StdEncoding.EncodeToString(ciphertext)

	return envelopePrefix + b64 + envelopeSuffix, nil
}

// Decode extracts a state token from arbitrary surrounding text (e.g. a
// platform comment body), decrypts it under reportID's key, and
// unmarshals fields into out if the recovered class name matches
// expectedClass.
//
// A missing envelope or a class-name mismatch is reported via ok=false,
// not an error (spec §4.2 "Missing envelope or mismatched class name
// returns 'no state', not an error"). A present-but-corrupt envelope
// (bad base64, bad JSON after decryption — e.g. the wrong key) also
// reports ok=false, matching the §8 boundary behavior "state token
// present but undecodable ... treated as no-state".
func Decode(text string, reportID string, expectedClass string, out any) (ok bool, err error) {
	m := envelopePattern.FindStringSubmatch(text)
	if m == nil {
		return false, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return false, nil
	}

	key := DeriveKey(reportID)
	plaintext := xorKeystream(ciphertext, key)

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return false, nil
	}

	if env.Class != expectedClass {
		return false, nil
	}

	if out != nil {
		if err := json.Unmarshal(env.Fields, out); err != nil {
			return false, nil
		}
	}

	return true, nil
}

// ExtractEnvelope reports whether text contains a well-formed (but not
// necessarily decodable) state token envelope, useful for callers that
// only need to test for presence (e.g. identifying a log as a
// tracker-update log before attempting a full decode).
func ExtractEnvelope(text string) (string, bool) {
	m := envelopePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
