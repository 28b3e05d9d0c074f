// CLAUDE:SUMMARY Wallet JWT shim — HS256 token generation/validation, wallet extraction from verified credentials, EVM address normalisation, request identity
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoWallet      = errors.New("no wallet address in token")
	ErrInvalidWallet = errors.New("invalid wallet address")
)

type Auth struct {
	secret []byte
	expiry time.Duration
}

// Credential is one entry of the verified_credentials claim issued by
// wallet-login providers.
type Credential struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
	Format  string `json:"format,omitempty"`
}

type Claims struct {
	WalletAddress       string       `json:"wallet_address,omitempty"`
	VerifiedCredentials []Credential `json:"verified_credentials,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller as seen by the rest of the process.
type Identity struct {
	WalletAddress string
	UserID        string
}

func New(secret string, expiryMinutes int) *Auth {
	return &Auth{
		secret: []byte(secret),
		expiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// GenerateToken issues a token for a wallet. Used by the dev token endpoint
// and by tests; production tokens come from the wallet-login provider.
func (a *Auth) GenerateToken(wallet string) (string, error) {
	addr, err := NormalizeWallet(wallet)
	if err != nil {
		return "", err
	}
	claims := Claims{
		WalletAddress: addr,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Wallet picks the wallet address from the claims: an explicit
// wallet_address claim first, then verified credentials preferring eip155,
// then solana, then whatever comes first.
func (c *Claims) Wallet() (string, error) {
	if c.WalletAddress != "" {
		return NormalizeWallet(c.WalletAddress)
	}
	var first, solana string
	for _, cred := range c.VerifiedCredentials {
		if cred.Address == "" {
			continue
		}
		if first == "" {
			first = cred.Address
		}
		switch strings.ToLower(cred.Chain) {
		case "eip155", "evm", "ethereum":
			return NormalizeWallet(cred.Address)
		case "solana":
			if solana == "" {
				solana = cred.Address
			}
		}
	}
	if solana != "" {
		return NormalizeWallet(solana)
	}
	if first != "" {
		return NormalizeWallet(first)
	}
	return "", ErrNoWallet
}

// NormalizeWallet returns the EIP-55 checksummed form of an EVM address.
// Non-EVM addresses (no 0x prefix) are returned trimmed and unchanged.
func NormalizeWallet(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", ErrInvalidWallet
	}
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		if !common.IsHexAddress(addr) {
			return "", fmt.Errorf("%w: %s", ErrInvalidWallet, addr)
		}
		return common.HexToAddress(addr).Hex(), nil
	}
	if len(addr) < 8 || strings.ContainsAny(addr, " /\\") {
		return "", fmt.Errorf("%w: %s", ErrInvalidWallet, addr)
	}
	return addr, nil
}

// ExtractClaims reads the JWT from the Authorization header (Bearer token).
// Returns nil if no valid token is present (for public endpoints).
func (a *Auth) ExtractClaims(r *http.Request) *Claims {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}
	claims, err := a.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	return claims
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
