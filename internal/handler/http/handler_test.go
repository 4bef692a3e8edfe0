package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	customer = &models.TokenPayload{UserID: 7, UserName: "budi", Role: models.RoleUser}
	operator = &models.TokenPayload{UserID: 1, UserName: "admin", Role: models.RoleAdmin}
)

// newRequest builds request carrying auth payload and chi id param
func newRequest(t *testing.T, method, target, body string, token *models.TokenPayload, id string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))

	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, authPayloadKey, token)

	return req.WithContext(ctx)
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, res *http.Response) testEnvelope {
	t.Helper()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}
