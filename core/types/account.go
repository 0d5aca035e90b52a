package types

import (
	"math/big"
	"sort"

	"github.com/SELF-HQ/self-chain-core/common"
	"github.com/SELF-HQ/self-chain-core/crypto"
)

// InitialColor is the color marker every new account starts from.
const InitialColor = "000000"

// Account is the consensus representation of a wallet: balances, nonce, the
// 24-bit color marker and validator eligibility/bond.
//
// Canonical encoding order: address, balance, token count + sorted
// (token_id, balance) pairs, nonce, color, eligible, bond. Token pairs are
// sorted by token id so the leaf hash is identical on every node.
type Account struct {
	Address  string
	Balance  *big.Int            // native coin balance, nil treated as zero
	Tokens   map[string]*big.Int // token id -> balance
	Nonce    uint64
	Color    string // 6 hex chars, starts at InitialColor
	Eligible bool   // validator eligibility flag
	Bond     *big.Int
}

// NewAccount returns a zeroed account for addr with the initial color.
func NewAccount(addr string) *Account {
	return &Account{
		Address: addr,
		Balance: new(big.Int),
		Tokens:  make(map[string]*big.Int),
		Color:   InitialColor,
		Bond:    new(big.Int),
	}
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	cpy := &Account{
		Address:  a.Address,
		Balance:  new(big.Int),
		Tokens:   make(map[string]*big.Int, len(a.Tokens)),
		Nonce:    a.Nonce,
		Color:    a.Color,
		Eligible: a.Eligible,
		Bond:     new(big.Int),
	}
	if a.Balance != nil {
		cpy.Balance.Set(a.Balance)
	}
	if a.Bond != nil {
		cpy.Bond.Set(a.Bond)
	}
	for id, bal := range a.Tokens {
		cpy.Tokens[id] = new(big.Int).Set(bal)
	}
	return cpy
}

// TokenBalance returns the balance for a token id, zero if absent.
func (a *Account) TokenBalance(id string) *big.Int {
	if bal, ok := a.Tokens[id]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// EncodeCanonical produces the deterministic byte encoding of the account.
func (a *Account) EncodeCanonical() []byte {
	b := make([]byte, 0, 96+len(a.Address))
	b = appendString(b, a.Address)
	b = appendBytes(b, bigBytes(a.Balance))

	ids := make([]string, 0, len(a.Tokens))
	for id := range a.Tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b = appendUint64(b, uint64(len(ids)))
	for _, id := range ids {
		b = appendString(b, id)
		b = appendBytes(b, bigBytes(a.Tokens[id]))
	}

	b = appendUint64(b, a.Nonce)
	b = appendString(b, a.Color)
	b = appendBool(b, a.Eligible)
	b = appendBytes(b, bigBytes(a.Bond))
	return b
}

// LeafHash is the account's leaf in the state Merkle commitment.
func (a *Account) LeafHash() common.Hash {
	return crypto.DomainHash(crypto.AccountPrefix, a.EncodeCanonical())
}

// DecodeAccount parses an account from its canonical encoding.
func DecodeAccount(b []byte) (*Account, bool) {
	d := &decoder{buf: b}
	a := &Account{Tokens: make(map[string]*big.Int)}
	a.Address = d.string()
	a.Balance = new(big.Int).SetBytes(d.bytes())
	n := d.uint64()
	for i := uint64(0); i < n && !d.err; i++ {
		id := d.string()
		a.Tokens[id] = new(big.Int).SetBytes(d.bytes())
	}
	a.Nonce = d.uint64()
	a.Color = d.string()
	a.Eligible = d.bool()
	a.Bond = new(big.Int).SetBytes(d.bytes())
	if d.err || len(d.buf) != 0 {
		return nil, false
	}
	return a, true
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}
