package requests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecanizalez/orgreq/internal/lifecycle"
)

func submissionBody() map[string]any {
	return map[string]any{
		"organization": map[string]any{
			"name":        "Acme Corp",
			"website_url": "https://acme.test",
		},
		"admin": map[string]any{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      "ada@acme.test",
		},
	}
}

func TestCreatePublicRequestHandler(t *testing.T) {
	_, _, router := setupTestHandlers(t)

	rec := doJSON(t, router, http.MethodPost, "/api/public/organization-requests", "", submissionBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.NotNil(t, body["id"])
	// No token in the receipt.
	assert.NotContains(t, body, "token")

	// Same admin email again.
	rec = doJSON(t, router, http.MethodPost, "/api/public/organization-requests", "", submissionBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePublicRequestHandler_BadPayload(t *testing.T) {
	_, _, router := setupTestHandlers(t)

	rec := doJSON(t, router, http.MethodPost, "/api/public/organization-requests", "", map[string]any{
		"organization": map[string]any{"name": "Acme"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyTokenHandler(t *testing.T) {
	h, _, router := setupTestHandlers(t)

	inv, err := h.engine.CreateInvitation(context.Background(), lifecycle.Caller{UserID: 42}, lifecycle.SendInvitationRequest{
		Email:            "ada@acme.test",
		OrganizationName: "Acme Corp",
		ContactName:      "Ada Lovelace",
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/public/organization-requests/"+inv.Token+"/verify", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ada@acme.test", body["email"])
	assert.NotNil(t, body["expires_at"])
	assert.Equal(t, false, body["is_expired"])

	// Unknown tokens get a bare 404 with no detail.
	rec = doJSON(t, router, http.MethodGet, "/api/public/organization-requests/deadbeef/verify", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusText(http.StatusNotFound), decodeBody(t, rec)["error"])
}

func TestSubmitHandler(t *testing.T) {
	h, _, router := setupTestHandlers(t)

	inv, err := h.engine.CreateInvitation(context.Background(), lifecycle.Caller{UserID: 42}, lifecycle.SendInvitationRequest{
		Email:            "ada@acme.test",
		OrganizationName: "Acme Corp",
		ContactName:      "Ada Lovelace",
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/public/organization-requests/"+inv.Token, "", submissionBody())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decodeBody(t, rec)["status"])

	// Dead token.
	rec = doJSON(t, router, http.MethodPost, "/api/public/organization-requests/deadbeef", "", submissionBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Payload problem surfaces as a field error.
	bad := submissionBody()
	bad["admin"].(map[string]any)["email"] = "nope"
	rec = doJSON(t, router, http.MethodPost, "/api/public/organization-requests/"+inv.Token, "", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "admin.email", decodeBody(t, rec)["field"])
}
