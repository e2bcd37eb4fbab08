package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestJWTService(t *testing.T, expiration time.Duration) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret:     "test-secret-key-for-unit-tests",
		Issuer:     "fanders-test",
		Expiration: expiration,
	})
	require.NoError(t, err)
	return svc
}

func rsaKeyPEMs(t *testing.T) (string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(priv), string(pub)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService(t, 15*time.Minute)

	token, err := svc.GenerateToken("42", "main", []string{RoleCashier})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "main", claims.Branch)
	assert.Equal(t, []string{RoleCashier}, claims.Roles)
}

func TestValidateToken_Rejections(t *testing.T) {
	t.Run("expired", func(t *testing.T) {
		svc := newTestJWTService(t, -time.Hour)
		token, err := svc.GenerateToken("42", "", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := newTestJWTService(t, time.Minute).GenerateToken("42", "", nil)
		require.NoError(t, err)

		other, err := NewJWTService(JWTConfig{Secret: "other", Issuer: "fanders-test", Expiration: time.Minute})
		require.NoError(t, err)
		_, err = other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := newTestJWTService(t, time.Minute).GenerateToken("42", "", nil)
		require.NoError(t, err)

		other, err := NewJWTService(JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "elsewhere"})
		require.NoError(t, err)
		_, err = other.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestGenerateToken_RequiresUserID(t *testing.T) {
	_, err := newTestJWTService(t, time.Minute).GenerateToken("", "", nil)
	assert.Error(t, err)
}

func TestRSAIssuerAndValidator(t *testing.T) {
	priv, pub := rsaKeyPEMs(t)

	issuer, err := NewJWTService(JWTConfig{PrivateKeyPEM: priv, Expiration: time.Minute})
	require.NoError(t, err)
	validator, err := NewJWTService(JWTConfig{PublicKeyPEM: pub})
	require.NoError(t, err)

	token, err := issuer.GenerateToken("7", "", []string{RoleManager})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)

	_, err = validator.GenerateToken("7", "", nil)
	assert.Error(t, err, "validation-only mode cannot sign")
}

func TestNewJWTService_RequiresKey(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.Error(t, err)
}

func TestHasRole(t *testing.T) {
	claims := Claims{Roles: []string{RoleAdmin, RoleCashier}}
	assert.True(t, claims.HasRole(RoleCashier))
	assert.False(t, claims.HasRole(RoleManager))
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithClaims(context.Background(), &Claims{UserID: "42"})
	id, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestUnaryAuthInterceptor(t *testing.T) {
	svc := newTestJWTService(t, time.Minute)
	interceptor := UnaryAuthInterceptor(svc, []string{"/grpc.health.v1.Health/Check"})
	info := &grpc.UnaryServerInfo{FullMethod: "/fanders.ledger.v1.LedgerService/PostPayment"}

	echoUser := func(ctx context.Context, _ interface{}) (interface{}, error) {
		id, _ := UserIDFromContext(ctx)
		return id, nil
	}

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := svc.GenerateToken("42", "", nil)
		require.NoError(t, err)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))

		got, err := interceptor(ctx, nil, info, echoUser)
		require.NoError(t, err)
		assert.Equal(t, "42", got)
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
		_, err := interceptor(ctx, nil, info, echoUser)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("skipped method", func(t *testing.T) {
		skip := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		_, err := interceptor(context.Background(), nil, skip, echoUser)
		assert.NoError(t, err)
	})
}

func TestUnaryRoleInterceptor(t *testing.T) {
	const finalize = "/fanders.ledger.v1.LedgerService/FinalizeBlotter"
	interceptor := UnaryRoleInterceptor(MethodRoles{finalize: {RoleManager, RoleAdmin}})
	ok := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }

	cashier := ContextWithClaims(context.Background(), &Claims{UserID: "1", Roles: []string{RoleCashier}})
	manager := ContextWithClaims(context.Background(), &Claims{UserID: "2", Roles: []string{RoleManager}})

	_, err := interceptor(cashier, nil, &grpc.UnaryServerInfo{FullMethod: finalize}, ok)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = interceptor(manager, nil, &grpc.UnaryServerInfo{FullMethod: finalize}, ok)
	assert.NoError(t, err)

	_, err = interceptor(cashier, nil, &grpc.UnaryServerInfo{FullMethod: "/x/Open"}, ok)
	assert.NoError(t, err)
}
