package auth

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

const SessionCookieName = "__session"

// Claims are the session token claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Role      Role   `json:"role,omitempty"`
}

// TokenVerifier authenticates requests carrying an RS256 session token in the
// __session cookie or an Authorization bearer header.
type TokenVerifier struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

// NewTokenVerifier parses a PEM encoded RSA public key. A non-empty issuer
// is required to match the iss claim.
func NewTokenVerifier(pemKey []byte, issuer string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse session token public key")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenVerifier{key: key, parser: jwt.NewParser(opts...)}, nil
}

// CurrentUser implements Authenticator.
func (v *TokenVerifier) CurrentUser(r *http.Request) (*User, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, errors.WithSecondaryError(ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, errors.WithSecondaryError(ErrUnauthenticated, errors.New("token has no subject"))
	}

	u := &User{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		ImageURL:  claims.ImageURL,
		Role:      claims.Role,
	}
	if u.Role == "" {
		u.Role = RoleBuyer
	}
	if u.ImageURL == "" {
		u.ImageURL = DefaultAvatar
	}
	return u, nil
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
