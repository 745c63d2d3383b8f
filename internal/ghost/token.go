package ghost

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 5 * time.Minute

// adminKey is a parsed "<id>:<secret>" Admin API key.
type adminKey struct {
	id     string
	secret []byte
}

func parseAdminKey(key string) (adminKey, error) {
	id, secretHex, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || id == "" || secretHex == "" {
		return adminKey{}, fmt.Errorf("admin api key: expected <id>:<secret>")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return adminKey{}, fmt.Errorf("admin api key: decode secret: %w", err)
	}
	return adminKey{id: id, secret: secret}, nil
}

// sign returns a short-lived token for the Authorization: Ghost header.
func (k adminKey) sign(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		Audience:  jwt.ClaimStrings{"/admin/"},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = k.id
	return token.SignedString(k.secret)
}
