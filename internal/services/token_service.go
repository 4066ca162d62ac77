package services

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"avatarchat-backend/internal/auth"
	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
)

// TokenService issues API bearer tokens against the single configured client
// credential pair. There is no client registry; this service fronts one
// frontend deployment.
type TokenService struct {
	apiClientID     string
	apiClientSecret string
	jwtSecret       string
	issuer          string
	audience        string
	expMinutes      int
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		apiClientID:     cfg.APIClientID,
		apiClientSecret: cfg.APIClientSecret,
		jwtSecret:       cfg.JWTSecret,
		issuer:          cfg.JWTIssuer,
		audience:        cfg.JWTAudience,
		expMinutes:      cfg.JWTExpMinutes,
	}
}

// IssueToken validates the presented credentials and mints a signed token.
// Misconfiguration is the server's fault (500); a credential mismatch is the
// caller's (401).
func (s *TokenService) IssueToken(req models.TokenRequest) (*models.TokenResponse, error) {
	if s.apiClientID == "" || s.apiClientSecret == "" {
		return nil, configError("Token endpoint not configured")
	}
	if s.jwtSecret == "" {
		return nil, configError("Signing secret not configured")
	}

	idOK := subtle.ConstantTimeCompare([]byte(req.ClientID), []byte(s.apiClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(s.apiClientSecret)) == 1
	if !idOK || !secretOK {
		return nil, unauthorizedError("Invalid credentials")
	}

	subject := req.Subject
	if subject == "" {
		subject = req.ClientID
	}
	scopes := req.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	now := time.Now().Unix()
	expiresIn := s.expMinutes * 60
	claims := auth.Claims{
		"iss":    s.issuer,
		"aud":    s.audience,
		"iat":    now,
		"exp":    now + int64(expiresIn),
		"sub":    subject,
		"jti":    uuid.NewString(),
		"scopes": scopes,
	}

	token, err := auth.Issue(claims, s.jwtSecret)
	if err != nil {
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to sign token", HTTPStatus: 500, Err: err}
	}

	return &models.TokenResponse{AccessToken: token, ExpiresIn: expiresIn}, nil
}

// VerifyToken checks a bearer token presented to a protected endpoint.
func (s *TokenService) VerifyToken(token string) (auth.Claims, error) {
	if s.jwtSecret == "" {
		return nil, configError("Signing secret not configured")
	}
	claims, err := auth.Verify(token, s.jwtSecret, s.issuer, s.audience)
	if err != nil {
		return nil, &ServiceError{Code: CodeUnauthorized, Message: "Invalid or expired token", HTTPStatus: 401, Err: err}
	}
	return claims, nil
}
