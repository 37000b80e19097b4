package admission

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthResult is the outcome of a single Authenticator.Authenticate call.
type AuthResult struct {
	Valid    bool
	Error    string
	Subject  string
	Scope    string
	ClientID string
}

// JWTValidationResult is the detailed outcome of validating a JWT, kept as
// distinct tags rather than collapsed into a bool so callers can report
// EXPIRED vs INVALID_SIGNATURE distinctly.
type JWTValidationResult int

const (
	JWTValid JWTValidationResult = iota
	JWTInvalidFormat
	JWTInvalidSignature
	JWTExpired
	JWTNotYetValid
	JWTMissingClaim
	JWTInvalidIssuer
	JWTInvalidAudience
	JWTError
)

// Authenticator implements two mutually exclusive auth modes: a
// constant-time bearer-token comparison, or RS256/384/512 JWT validation
// via github.com/golang-jwt/jwt/v5.
type Authenticator struct {
	mode AuthModeFn

	bearerToken string

	jwtKey       *rsa.PublicKey
	jwtAlgorithm string
	jwtIssuer    string
	jwtAudience  string
	clockSkew    time.Duration
	requireExp   bool

	panelPasswordHash []byte
}

// AuthModeFn selects which path Authenticate takes.
type AuthModeFn int

const (
	ModeNone AuthModeFn = iota
	ModeBearer
	ModeJWT
)

// NewBearerAuthenticator builds a constant-time bearer-token authenticator.
func NewBearerAuthenticator(token string) *Authenticator {
	return &Authenticator{mode: ModeBearer, bearerToken: token}
}

// NewJWTAuthenticator builds an RS256/384/512 validator.
func NewJWTAuthenticator(publicKeyPEM, algorithm, issuer, audience string, clockSkew time.Duration, requireExp bool) (*Authenticator, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		mode:         ModeJWT,
		jwtKey:       key,
		jwtAlgorithm: algorithm,
		jwtIssuer:    issuer,
		jwtAudience:  audience,
		clockSkew:    clockSkew,
		requireExp:   requireExp,
	}, nil
}

// Authenticate validates the Authorization header, falling back to
// cookieFallback when the header is absent (used by WS handshakes, which
// can't set custom headers from a browser client).
func (a *Authenticator) Authenticate(authHeader, cookieFallback string) AuthResult {
	raw := authHeader
	if raw == "" {
		raw = cookieFallback
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return AuthResult{Valid: false, Error: "missing bearer token"}
	}
	token := raw[len(prefix):]

	switch a.mode {
	case ModeBearer:
		if ConstantTimeEqual(token, a.bearerToken) {
			return AuthResult{Valid: true, Subject: "bearer"}
		}
		return AuthResult{Valid: false, Error: "invalid bearer token"}
	case ModeJWT:
		claims, result := a.validateJWT(token)
		if result != JWTValid {
			return AuthResult{Valid: false, Error: jwtResultMessage(result)}
		}
		return AuthResult{Valid: true, Subject: claims.Subject, Scope: claims.Scope, ClientID: claims.ClientID}
	default:
		return AuthResult{Valid: false, Error: "no authentication configured"}
	}
}

// Claims holds the fields extracted from a validated JWT.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	Scope     string
	ClientID  string
}

func (a *Authenticator) validateJWT(raw string) (Claims, JWTValidationResult) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.jwtKey, nil
	}, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithLeeway(a.clockSkew))
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "token is expired"):
			return Claims{}, JWTExpired
		case strings.Contains(err.Error(), "token is not valid yet"):
			return Claims{}, JWTNotYetValid
		case strings.Contains(err.Error(), "signature is invalid"):
			return Claims{}, JWTInvalidSignature
		default:
			return Claims{}, JWTInvalidFormat
		}
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, JWTError
	}

	if a.requireExp {
		if _, ok := mapClaims["exp"]; !ok {
			return Claims{}, JWTMissingClaim
		}
	}
	if a.jwtIssuer != "" {
		iss, _ := mapClaims.GetIssuer()
		if iss != a.jwtIssuer {
			return Claims{}, JWTInvalidIssuer
		}
	}
	if a.jwtAudience != "" {
		aud, _ := mapClaims.GetAudience()
		found := false
		for _, v := range aud {
			if v == a.jwtAudience {
				found = true
				break
			}
		}
		if !found {
			return Claims{}, JWTInvalidAudience
		}
	}

	out := Claims{}
	out.Issuer, _ = mapClaims.GetIssuer()
	out.Subject, _ = mapClaims.GetSubject()
	if scope, ok := mapClaims["scope"].(string); ok {
		out.Scope = scope
	}
	if cid, ok := mapClaims["client_id"].(string); ok {
		out.ClientID = cid
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, JWTValid
}

func jwtResultMessage(r JWTValidationResult) string {
	switch r {
	case JWTInvalidFormat:
		return "invalid token format"
	case JWTInvalidSignature:
		return "invalid signature"
	case JWTExpired:
		return "token expired"
	case JWTNotYetValid:
		return "token not yet valid"
	case JWTMissingClaim:
		return "missing required claim"
	case JWTInvalidIssuer:
		return "invalid issuer"
	case JWTInvalidAudience:
		return "invalid audience"
	default:
		return "token validation error"
	}
}

// ConstantTimeEqual compares a and b without leaking timing information
// about length or the position of the first mismatch. Used for both bearer
// token comparison and the panel operator password check.
func ConstantTimeEqual(a, b string) bool {
	// subtle.ConstantTimeCompare requires equal-length inputs to avoid a
	// length side channel; hash both to a fixed width first.
	ah, bh := fixedWidth(a), fixedWidth(b)
	return subtle.ConstantTimeCompare(ah, bh) == 1 && len(a) == len(b)
}

func fixedWidth(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// ValidatePanelPassword checks password against the configured panel
// operator password using ConstantTimeEqual.
func ValidatePanelPassword(password, configured string) bool {
	return ConstantTimeEqual(password, configured)
}
