package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-key-32-chars!"

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTokenService(t *testing.T, accessTTL time.Duration) services.TokenService {
	t.Helper()
	svc, err := services.NewTokenService(accessTTL, time.Hour, "rsvp-test", "rsvp-test-api", false, "", "", testSecret, nil)
	require.NoError(t, err)
	return svc
}

func newProtectedApp(svc services.TokenService) *fiber.App {
	app := fiber.New()
	app.Get("/private", NewAuthMiddleware(svc).Authenticate(), func(c fiber.Ctx) error {
		id, ok := GetOperatorIDFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		claims, ok := GetTokenClaimsFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"operator_id": id, "token_type": claims.TokenType})
	})
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) (int, errorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestAuthenticate(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	app := newProtectedApp(svc)
	access, refresh, err := svc.GenerateOperatorTokens(7)
	require.NoError(t, err)

	t.Run("AccessTokenPasses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(7), body["operator_id"])
		assert.Equal(t, services.TokenTypeAccess, body["token_type"])
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"MissingHeader", "", "MISSING_AUTHORIZATION_HEADER"},
		{"WrongScheme", "Basic abc", "INVALID_AUTHORIZATION_FORMAT"},
		{"Garbage", "Bearer not-a-jwt", "TOKEN_INVALID"},
		{"RefreshTokenRejected", "Bearer " + refresh, "TOKEN_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}

	t.Run("RevokedToken", func(t *testing.T) {
		revoked, _, err := svc.GenerateOperatorTokens(8)
		require.NoError(t, err)
		require.NoError(t, svc.RevokeToken(context.Background(), revoked))

		status, body := call(t, app, "Bearer "+revoked)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "TOKEN_REVOKED", body.Error.Code)
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics("/metrics"))
	app.Get("/events/:id", func(c fiber.Ctx) error { return c.SendString(c.Params("id")) })
	app.Get("/boom", func(c fiber.Ctx) error { return fiber.NewError(fiber.StatusConflict, "boom") })
	app.Get("/metrics", func(c fiber.Ctx) error { return c.SendString("ok") })

	before := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/events/:id", "200"))
	for _, path := range []string{"/events/1", "/events/2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}
	after := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/events/:id", "200"))
	assert.Equal(t, before+2, after)

	conflicts := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "409"))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, conflicts+1, counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "409")))

	scrapes := counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200"))
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, scrapes, counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")))
}
