package id

import "testing"

func TestParseChainVariants(t *testing.T) {
	chain, err := ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain(base) failed: %v", err)
	}
	if chain.CAIP2() != "eip155:8453" || chain.AnkrSlug != "base" {
		t.Fatalf("unexpected chain: %+v", chain)
	}

	chain, err = ParseChain("478")
	if err != nil {
		t.Fatalf("ParseChain(478) failed: %v", err)
	}
	if chain.Slug != "form" {
		t.Fatalf("unexpected slug: %s", chain.Slug)
	}

	chain, err = ParseChain("Form_Testnet")
	if err != nil {
		t.Fatalf("ParseChain(Form_Testnet) failed: %v", err)
	}
	if chain.EVMChainID != 132902 || !chain.Testnet {
		t.Fatalf("unexpected chain: %+v", chain)
	}

	chain, err = ParseChain("eip155:999999")
	if err != nil {
		t.Fatalf("ParseChain(eip155:999999) failed: %v", err)
	}
	if chain.EVMChainID != 999999 {
		t.Fatalf("unexpected chain ID: %d", chain.EVMChainID)
	}
}

func TestParseChainRejectsUnknown(t *testing.T) {
	if _, err := ParseChain(""); err == nil {
		t.Fatal("expected error for empty chain")
	}
	if _, err := ParseChain("narnia"); err == nil {
		t.Fatal("expected error for unknown chain")
	}
}
