package main

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	target, err := parseTarget("0x41414141")
	if err != nil {
		t.Fatal(err)
	}

	if target != 0x41414141 {
		t.Fatalf("expected 0x41414141 - got 0x%x", target)
	}

	target, err = parseTarget("260")
	if err != nil {
		t.Fatal(err)
	}

	if target != 260 {
		t.Fatalf("expected 260 - got %d", target)
	}
}

func TestParseTargetRejectsWideAddresses(t *testing.T) {
	_, err := parseTarget("0x100000000")
	if err == nil {
		t.Fatal("expected an error for a target wider than 32 bits")
	}

	_, err = parseTarget("0xffffffffff1000")
	if err == nil {
		t.Fatal("expected an error for a target wider than 32 bits")
	}
}

func TestParseTargetRejectsGarbage(t *testing.T) {
	_, err := parseTarget("not-an-address")
	if err == nil {
		t.Fatal("expected an error for a malformed target")
	}
}
