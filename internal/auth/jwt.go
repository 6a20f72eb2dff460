package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"semaphore/portal/internal/model"
)

var ErrNoRoles = errors.New("token_without_roles")

type Claims struct {
	Name    string   `json:"name"`
	Surname string   `json:"surname"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// Parser reads access tokens issued by the API. Without a secret the signature
// is not checked: tokens only ever arrive straight from the API response.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	p := &Parser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

func (p *Parser) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if len(p.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (p *Parser) User(tokenString string) (*model.User, error) {
	claims, err := p.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.User()
}

func (c *Claims) User() (*model.User, error) {
	user := &model.User{
		Name:    c.Name,
		Surname: c.Surname,
		Email:   c.Email,
	}
	seen := map[model.Role]bool{}
	for _, raw := range c.Roles {
		role, ok := model.ParseRole(raw)
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		user.Roles = append(user.Roles, role)
	}
	if len(user.Roles) == 0 {
		return nil, ErrNoRoles
	}
	user.ActiveRole = user.Roles[0]
	return user, nil
}

// Expired reports whether the token is past its exp claim, with leeway.
// Unparseable tokens count as expired.
func (p *Parser) Expired(tokenString string, leeway time.Duration) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(leeway).After(claims.ExpiresAt.Time)
}

func NewToken(secret string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
