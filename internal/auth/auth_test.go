package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evmLower = "0x52908400098527886e0f7030069857d2e4169ee7"
const evmChecksum = "0x52908400098527886E0F7030069857D2E4169EE7"

func TestGenerateAndValidate(t *testing.T) {
	a := New("test-secret", 60)

	tok, err := a.GenerateToken(evmLower)
	require.NoError(t, err)

	claims, err := a.ValidateToken(tok)
	require.NoError(t, err)
	wallet, err := claims.Wallet()
	require.NoError(t, err)
	assert.Equal(t, evmChecksum, wallet)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tok, err := New("one", 60).GenerateToken(evmLower)
	require.NoError(t, err)

	_, err = New("two", 60).ValidateToken(tok)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	a := New("s", 60)
	claims := Claims{
		WalletAddress: evmChecksum,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = a.ValidateToken(tok)
	assert.Error(t, err)
}

func TestClaimsWallet(t *testing.T) {
	sol := "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV"
	tests := []struct {
		name    string
		claims  Claims
		want    string
		wantErr error
	}{
		{
			name:   "explicit claim",
			claims: Claims{WalletAddress: evmLower},
			want:   evmChecksum,
		},
		{
			name: "eip155 preferred over solana",
			claims: Claims{VerifiedCredentials: []Credential{
				{Address: sol, Chain: "solana"},
				{Address: evmLower, Chain: "eip155"},
			}},
			want: evmChecksum,
		},
		{
			name: "solana when no evm",
			claims: Claims{VerifiedCredentials: []Credential{
				{Address: "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu", Chain: "cosmos"},
				{Address: sol, Chain: "solana"},
			}},
			want: sol,
		},
		{
			name: "first credential fallback",
			claims: Claims{VerifiedCredentials: []Credential{
				{Address: "", Chain: "eip155"},
				{Address: "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu", Chain: "cosmos"},
			}},
			want: "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu",
		},
		{
			name:    "no wallet",
			claims:  Claims{},
			wantErr: ErrNoWallet,
		},
		{
			name:    "malformed evm",
			claims:  Claims{WalletAddress: "0x1234"},
			wantErr: ErrInvalidWallet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.claims.Wallet()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractClaims(t *testing.T) {
	a := New("s", 60)
	tok, err := a.GenerateToken(evmLower)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, a.ExtractClaims(r), "no header")

	r.Header.Set("Authorization", "Basic abc")
	assert.Nil(t, a.ExtractClaims(r), "wrong scheme")

	r.Header.Set("Authorization", "bearer "+tok)
	c := a.ExtractClaims(r)
	require.NotNil(t, c)
	assert.Equal(t, evmChecksum, c.WalletAddress)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{WalletAddress: evmChecksum, UserID: "u1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
