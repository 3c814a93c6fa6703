package validator

import (
	"strings"
	"testing"
)

func TestValidateTopicID(t *testing.T) {
	if err := ValidateTopicID("3f1c2a9e-7b44-4c3e-9a55-0d4b1f9e2c11"); err != nil {
		t.Fatalf("uuid topic should be valid: %v", err)
	}
	if err := ValidateTopicID(""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if err := ValidateTopicID("../etc/passwd"); err == nil {
		t.Fatal("expected error for path characters")
	}
	if err := ValidateTopicID(strings.Repeat("a", maxTopicIDLen+1)); err == nil {
		t.Fatal("expected error for oversized id")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("unexpected checksum address %s", got)
	}
	if _, err := NormalizeAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"); err == nil {
		t.Fatal("expected error without 0x prefix")
	}
	if _, err := NormalizeAddress("0x1234"); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestSameAddress(t *testing.T) {
	if !SameAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED") {
		t.Fatal("case should not matter")
	}
	if SameAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "not-an-address") {
		t.Fatal("invalid address should never match")
	}
}

func TestDecodeHexData(t *testing.T) {
	data, err := DecodeHexData("0xdeadbeef")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("decoded len=%d, want 4", len(data))
	}
	if _, err := DecodeHexData("deadbeef"); err == nil {
		t.Fatal("expected error without 0x prefix")
	}
}
