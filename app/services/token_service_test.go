package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		testSecret,
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		privateKey  string
		publicKey   string
		secretKey   string
		expectError bool
	}{
		{
			name:        "valid symmetric key configuration",
			secretKey:   testSecret,
			expectError: false,
		},
		{
			name:        "missing secret key",
			expectError: true,
		},
		{
			name:        "rsa without keys",
			useRSAKeys:  true,
			expectError: true,
		},
		{
			name:        "rsa with garbage keys",
			useRSAKeys:  true,
			privateKey:  "not a key",
			publicKey:   "not a key",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Minute, "i", "a", tt.useRSAKeys, tt.privateKey, tt.publicKey, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []struct {
		name    string
		subject string
		role    string
		wantErr bool
	}{
		{"admin", "alice@example.com", RoleAdmin, false},
		{"operator", "desk-1", RoleOperator, false},
		{"unknown role", "bob", "root", true},
		{"missing subject", "", RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.GenerateToken(tt.subject, tt.role)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, token, "eyJ")

			claims, err := service.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, tt.role == RoleAdmin, claims.IsAdmin())
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestValidateTokenRejects(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return token
	}
	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "x", "role": RoleAdmin, "jti": "j",
			"iat": now.Unix(), "exp": now.Add(time.Minute).Unix(),
			"iss": "test-issuer", "aud": "test-audience",
		}
	}

	expired := base()
	expired["exp"] = now.Add(-time.Minute).Unix()
	wrongAudience := base()
	wrongAudience["aud"] = "someone-else"
	badRole := base()
	badRole["role"] = "superuser"
	noExp := base()
	delete(noExp, "exp")

	_, err = service.ValidateToken(sign(expired))
	assert.ErrorIs(t, err, ErrTokenExpired)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "invalid.token.format",
		"wrong audience": sign(wrongAudience),
		"bad role":       sign(badRole),
		"no expiry":      sign(noExp),
	} {
		claims, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
		assert.Nil(t, claims, name)
	}

	valid, err := service.ValidateToken(sign(base()))
	require.NoError(t, err)
	assert.Equal(t, "x", valid.Subject)
}

func TestTokenSecurity(t *testing.T) {
	service1, err := NewTokenService(15*time.Minute, "issuer", "audience", false, "", "", "test-secret-key-1-for-jwt-signing-32-chars")
	require.NoError(t, err)
	service2, err := NewTokenService(15*time.Minute, "issuer", "audience", false, "", "", "test-secret-key-2-for-jwt-signing-32-chars")
	require.NoError(t, err)

	token1, err := service1.GenerateToken("a", RoleAdmin)
	require.NoError(t, err)

	claims, err := service2.ValidateToken(token1)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestRSATokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privatePEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))

	service, err := NewTokenService(time.Minute, "i", "a", true, privatePEM, publicPEM, "")
	require.NoError(t, err)

	token, err := service.GenerateToken("ops", RoleOperator)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, claims.Role)

	hmac, err := createTestTokenService()
	require.NoError(t, err)
	_, err = hmac.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
