package devserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload the dev server issues and accepts.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token for user.
func IssueToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// bearerAuth accepts a static token or an HS256 token signed with secret.
// With neither configured every request passes.
func bearerAuth(token string, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" && len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
				return
			}
			presented := auth[7:]
			if token != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			if len(secret) > 0 {
				if err := verify(presented, secret); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "given token not valid")
		})
	}
}

func verify(raw string, secret []byte) error {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("invalid token")
	}
	return nil
}
