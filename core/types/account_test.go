package types

import (
	"math/big"
	"testing"
)

func TestAccountRoundTrip(t *testing.T) {
	acct := NewAccount("alice")
	acct.Balance = big.NewInt(1_000_000)
	acct.Tokens["usd"] = big.NewInt(42)
	acct.Tokens["eur"] = big.NewInt(7)
	acct.Nonce = 9
	acct.Color = "1A2B3C"
	acct.Eligible = true
	acct.Bond = big.NewInt(500)

	decoded, ok := DecodeAccount(acct.EncodeCanonical())
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded.LeafHash() != acct.LeafHash() {
		t.Fatal("leaf hash changed through encode/decode")
	}
	if decoded.TokenBalance("usd").Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("token balance: have %s, want 42", decoded.TokenBalance("usd"))
	}

	if _, ok := DecodeAccount([]byte("garbage")); ok {
		t.Fatal("garbage decoded as account")
	}
}

func TestAccountCopyIsDeep(t *testing.T) {
	acct := NewAccount("alice")
	acct.Balance = big.NewInt(100)
	acct.Tokens["usd"] = big.NewInt(5)

	cpy := acct.Copy()
	cpy.Balance.SetInt64(999)
	cpy.Tokens["usd"].SetInt64(999)

	if acct.Balance.Int64() != 100 || acct.Tokens["usd"].Int64() != 5 {
		t.Fatal("copy shares storage with the original")
	}
}
