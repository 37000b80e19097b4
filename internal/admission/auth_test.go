package admission

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func genRSAPublicPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTValidTokenAuthenticates(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	auth, err := NewJWTAuthenticator(genRSAPublicPEM(t, key), "RS256", "owl-gateway", "owl-clients", 5*time.Second, true)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"iss": "owl-gateway",
		"aud": "owl-clients",
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	res := auth.Authenticate("Bearer "+token, "")
	if !res.Valid || res.Subject != "user-1" {
		t.Fatalf("expected valid auth, got %+v", res)
	}
}

func TestJWTExpiredTokenRejected(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	auth, err := NewJWTAuthenticator(genRSAPublicPEM(t, key), "RS256", "", "", time.Second, true)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator: %v", err)
	}
	token := signToken(t, key, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	res := auth.Authenticate("Bearer "+token, "")
	if res.Valid {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTWrongKeyRejected(t *testing.T) {
	signingKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	otherKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	auth, err := NewJWTAuthenticator(genRSAPublicPEM(t, otherKey), "RS256", "", "", time.Second, false)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator: %v", err)
	}
	token := signToken(t, signingKey, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	res := auth.Authenticate("Bearer "+token, "")
	if res.Valid {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestConstantTimeEqualBearer(t *testing.T) {
	auth := NewBearerAuthenticator("s3cr3t")
	if !auth.Authenticate("Bearer s3cr3t", "").Valid {
		t.Fatal("expected matching bearer token to authenticate")
	}
	if auth.Authenticate("Bearer wrong", "").Valid {
		t.Fatal("expected mismatching bearer token to be rejected")
	}
}
