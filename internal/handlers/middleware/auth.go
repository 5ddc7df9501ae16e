// Package middleware holds the reviewer authentication for the admin
// API. Tokens are RS256 JWTs issued by the company SSO; this service
// only verifies, it never issues.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/rs/zerolog/log"

	"github.com/ecanizalez/orgreq/internal/handlers/abuse"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/models"
)

var (
	logger = log.With().Str("component", "auth").Logger()
)

// KeyCaller is the gin context key holding the authenticated reviewer.
const KeyCaller = "CALLER"

type AuthConfig struct {
	// PublicKeyPEM verifies the SSO's RS256 signatures.
	PublicKeyPEM string `yaml:"public_key_pem"`
	Issuer       string `yaml:"issuer"`
}

func (c *AuthConfig) Validate() {
	if c.PublicKeyPEM == "" {
		logger.Fatal().Msg("PublicKeyPEM is missing")
	}

	if c.Issuer == "" {
		logger.Fatal().Msg("Issuer is missing")
	}
}

type Auth struct {
	config    *AuthConfig
	publicKey jwk.Key
}

func NewAuth(config *AuthConfig) *Auth {
	pub, err := jwk.ParseKey([]byte(config.PublicKeyPEM), jwk.WithPEM(true))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse public key")
	}

	return &Auth{
		config:    config,
		publicKey: pub,
	}
}

// RequireReviewer only lets platform reviewers through. Forged or
// expired tokens get a bare 401 and an abuse flag; a valid token
// without the role gets 403.
func (a *Auth) RequireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			c.Abort()
			return
		}

		// Parse verifies the signature and rejects expired tokens.
		token, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.RS256(), a.publicKey))
		if err != nil {
			c.Set(abuse.KeyFlag, c.FullPath()+" invalid token")
			c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			c.Abort()
			return
		}

		iss, ok := token.Issuer()
		if !ok || iss != a.config.Issuer {
			c.Set(abuse.KeyFlag, c.FullPath()+" wrong issuer")
			c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			c.Abort()
			return
		}

		sub, ok := token.Subject()
		if !ok {
			c.Set(abuse.KeyFlag, c.FullPath()+" no subject")
			c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			c.Abort()
			return
		}
		userID, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			c.Set(abuse.KeyFlag, c.FullPath()+" bad subject")
			c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			c.Abort()
			return
		}

		var roles string
		if err := token.Get("roles", &roles); err != nil || !hasRole(roles, models.RoleSuperAdmin) {
			c.String(http.StatusForbidden, http.StatusText(http.StatusForbidden))
			c.Abort()
			return
		}

		c.Set(KeyCaller, lifecycle.Caller{UserID: uint(userID)})
		c.Next()
	}
}

// CallerFromContext returns the reviewer put there by RequireReviewer.
func CallerFromContext(c *gin.Context) lifecycle.Caller {
	v, ok := c.Get(KeyCaller)
	if !ok {
		return lifecycle.Caller{}
	}
	caller, _ := v.(lifecycle.Caller)
	return caller
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return tok, tok != ""
}

func hasRole(roles, role string) bool {
	for _, r := range strings.Fields(roles) {
		if r == role {
			return true
		}
	}
	return false
}
