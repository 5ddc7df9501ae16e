package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/require"
	gormlog "gorm.io/gorm/logger"

	"github.com/ecanizalez/orgreq/internal/cache"
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/handlers/middleware"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/mailer"
	"github.com/ecanizalez/orgreq/internal/models"
	"github.com/ecanizalez/orgreq/internal/storage"
	"github.com/ecanizalez/orgreq/testdata"
)

const testIssuer = "https://sso.example.com"

type nopSender struct{}

func (nopSender) Send(kind mailer.Kind, recipient string, data mailer.Data) bool {
	return true
}

func setupTestHandlers(t *testing.T) (*Handlers, *gormw.DB, *gin.Engine) {
	t.Helper()
	db, err := gormw.Open(&gormw.Config{
		LogLevel: gormlog.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	require.NoError(t, storage.SeedStatuses(db))

	statuses, err := storage.LoadStatusRegistry(db)
	require.NoError(t, err)

	engine := lifecycle.New(lifecycle.Config{
		InvitationBaseURL: "https://portal.example.com/requests",
		LoginURL:          "https://portal.example.com/login",
	}, db, statuses, nopSender{}, cache.New())

	auth := middleware.NewAuth(&middleware.AuthConfig{
		PublicKeyPEM: testdata.PublicKeyPEM,
		Issuer:       testIssuer,
	})

	h := New(db, engine, statuses, auth)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterHandlers(router.Group("/"))

	return h, db, router
}

// reviewerToken signs a short-lived superadmin token for user 42.
func reviewerToken(t *testing.T) string {
	t.Helper()

	priv, err := jwk.ParseKey([]byte(testdata.PrivateKeyPEM), jwk.WithPEM(true))
	require.NoError(t, err)

	token, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("42").
		Expiration(time.Now().Add(time.Hour)).
		Claim("roles", models.RoleSuperAdmin).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), priv))
	require.NoError(t, err)
	return string(signed)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// seedPendingInvitation drives an invitation through the send and
// submit steps so it is ready for review.
func seedPendingInvitation(t *testing.T, h *Handlers, email string) *models.Invitation {
	t.Helper()
	ctx := context.Background()

	inv, err := h.engine.CreateInvitation(ctx, lifecycle.Caller{UserID: 42}, lifecycle.SendInvitationRequest{
		Email:            email,
		OrganizationName: "Acme Corp",
		ContactName:      "Ada Lovelace",
	})
	require.NoError(t, err)

	_, err = h.engine.Submit(ctx, inv.Token, lifecycle.SubmissionRequest{
		Organization: lifecycle.OrganizationSubmission{Name: "Acme Corp"},
		Admin: lifecycle.AdminSubmission{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     email,
		},
	})
	require.NoError(t, err)

	return inv
}
