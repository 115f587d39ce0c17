// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sidecar struct {
	Key       string    `cbor:"key"`
	Files     int       `cbor:"files"`
	CreatedAt time.Time `cbor:"created_at"`
	Digest    []byte    `cbor:"digest,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sidecar{
		Key:       "dependency-artifacts-abc123",
		Files:     42,
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Digest:    []byte{0x01, 0x02, 0xff},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sidecar
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Key != original.Key || decoded.Files != original.Files ||
		!decoded.CreatedAt.Equal(original.CreatedAt) || !bytes.Equal(decoded.Digest, original.Digest) {
		t.Errorf("round trip = %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding is not deterministic")
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	type jsonTagged struct {
		Target string `json:"target"`
	}
	data, err := Marshal(jsonTagged{Target: "x86_64-unknown-linux-gnu"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["target"] != "x86_64-unknown-linux-gnu" {
		t.Errorf("decoded = %v, want key \"target\"", decoded)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i := range 3 {
		if err := encoder.Encode(sidecar{Files: i}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	decoder := NewDecoder(&buffer)
	for i := range 3 {
		var decoded sidecar
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if decoded.Files != i {
			t.Errorf("item %d has Files=%d", i, decoded.Files)
		}
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var decoded sidecar
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Fatal("Unmarshal should reject invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]int{"files": 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(text, `"files"`) || !strings.Contains(text, "7") {
		t.Errorf("Diagnose = %q", text)
	}
}
