package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

type errorEnvelope struct {
	Status int         `json:"status"`
	Data   []*AppError `json:"data"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *echo.Echo {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := routes(func(e *echo.Echo) {
		e.GET("/boom", func(echo.Context) error { panic("boom") })
		e.GET("/missing", func(echo.Context) error { return NotFoundError("no such record") })
		e.GET("/plain", func(echo.Context) error { return errors.New("db down") })
		e.POST("/echo", func(c echo.Context) error {
			var body map[string]interface{}
			if err := c.Bind(&body); err != nil {
				return err
			}
			return SuccessResponse(c, body)
		})
	})
	opts = append([]ServerOption{WithMetrics("", reg, reg)}, opts...)
	return NewServer(h, opts...).Echo()
}

func serve(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, errorEnvelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestServer_ErrorEnvelope(t *testing.T) {
	e := newTestServer(t)

	cases := []struct {
		name   string
		path   string
		status int
		code   string
		msg    string
	}{
		{"unknown route", "/nope", http.StatusNotFound, CodeNotFound, "Not Found"},
		{"app error", "/missing", http.StatusNotFound, CodeNotFound, "no such record"},
		{"panic", "/boom", http.StatusInternalServerError, CodeInternal, "internal error"},
		{"plain error", "/plain", http.StatusInternalServerError, CodeInternal, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := serve(e, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, env.Status)
			require.Len(t, env.Data, 1)
			assert.Equal(t, tc.code, env.Data[0].Code)
			assert.Equal(t, tc.msg, env.Data[0].Message)
		})
	}
}

func TestServer_PlainErrorIsNotLeaked(t *testing.T) {
	e := newTestServer(t)
	rec, _ := serve(e, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestServer_HealthzAndRequestID(t *testing.T) {
	e := newTestServer(t)
	rec, _ := serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_BodyLimit(t *testing.T) {
	e := newTestServer(t, WithBodyLimit("1K"))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 2048)+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec, env := serve(e, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Len(t, env.Data, 1)
	assert.Equal(t, CodeBadRequest, env.Data[0].Code)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec, _ = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	e := newTestServer(t, WithCORS(true, "https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/missing", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec, _ := serve(e, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}
