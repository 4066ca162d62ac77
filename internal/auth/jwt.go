package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verification failure modes. Handlers map all of these to 401.
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported token algorithm")
	ErrBadSignature         = errors.New("invalid token signature")
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidIssuer        = errors.New("invalid token issuer")
	ErrInvalidAudience      = errors.New("invalid token audience")
)

// Claims is the decoded token payload.
type Claims map[string]any

const signingAlgorithm = "HS256"

// b64url encodes without padding, as required by the compact token format.
func b64url(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func b64urlDecode(s string) ([]byte, error) {
	// Tolerate padded input from older clients.
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func sign(signingInput []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signingInput)
	return mac.Sum(nil)
}

// Issue serializes the fixed header and the supplied claims to compact JSON,
// base64url-encodes both without padding, and appends an HMAC-SHA256
// signature over "header.payload" keyed with secret.
func Issue(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}

	header := map[string]string{"alg": signingAlgorithm, "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal token header: %w", err)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal token claims: %w", err)
	}

	headerB64 := b64url(headerJSON)
	payloadB64 := b64url(payloadJSON)
	signature := sign([]byte(headerB64+"."+payloadB64), secret)

	return headerB64 + "." + payloadB64 + "." + b64url(signature), nil
}

// Verify checks the token's structure, algorithm, signature (constant-time),
// expiry, and — when expectedIssuer / expectedAudience are non-empty — the
// iss and aud claims. The aud claim may be a single string or a list; for
// lists the check is membership, not equality. Returns the decoded claims.
func Verify(token, secret, expectedIssuer, expectedAudience string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	headerB64, payloadB64, signatureB64 := parts[0], parts[1], parts[2]

	headerJSON, err := b64urlDecode(headerB64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, ErrMalformedToken
	}

	payloadJSON, err := b64urlDecode(payloadB64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, ErrMalformedToken
	}

	if alg, _ := header["alg"].(string); alg != signingAlgorithm {
		return nil, ErrUnsupportedAlgorithm
	}

	expected := sign([]byte(headerB64+"."+payloadB64), secret)
	actual, err := b64urlDecode(signatureB64)
	if err != nil {
		return nil, ErrBadSignature
	}
	if !hmac.Equal(expected, actual) {
		return nil, ErrBadSignature
	}

	if err := validateClaims(claims, expectedIssuer, expectedAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

func validateClaims(claims Claims, expectedIssuer, expectedAudience string) error {
	// exp must be present, numeric and in the future.
	exp, ok := claims["exp"]
	if !ok {
		return ErrTokenExpired
	}
	expNum, ok := exp.(float64) // JSON numbers decode to float64
	if !ok {
		return ErrTokenExpired
	}
	if int64(expNum) < time.Now().Unix() {
		return ErrTokenExpired
	}

	if expectedIssuer != "" {
		if iss, _ := claims["iss"].(string); iss != expectedIssuer {
			return ErrInvalidIssuer
		}
	}

	if expectedAudience != "" {
		switch aud := claims["aud"].(type) {
		case string:
			if aud != expectedAudience {
				return ErrInvalidAudience
			}
		case []any:
			found := false
			for _, a := range aud {
				if s, ok := a.(string); ok && s == expectedAudience {
					found = true
					break
				}
			}
			if !found {
				return ErrInvalidAudience
			}
		default:
			return ErrInvalidAudience
		}
	}

	return nil
}
