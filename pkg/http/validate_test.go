package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	InstID string `query:"inst_id" validate:"required"`
	Mode   string `query:"mode" default:"fix" validate:"oneof=fix all"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func newContext(target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	req := &listRequest{}
	verr := ReadAndValidateRequest(newContext("/x?inst_id=BTC-USDT"), req)
	require.Nil(t, verr)
	assert.Equal(t, "BTC-USDT", req.InstID)
	assert.Equal(t, "fix", req.Mode)
	assert.Equal(t, 100, req.Limit)
}

func TestReadAndValidateRequest_WireFieldNames(t *testing.T) {
	req := &listRequest{}
	verr := ReadAndValidateRequest(newContext("/x?mode=some&limit=5000"), req)
	require.Len(t, verr, 3)

	byField := map[string]ValidationError{}
	for _, e := range verr {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_REQUIRED", byField["inst_id"].Code)
	assert.Equal(t, "ERR_ONEOF", byField["mode"].Code)
	assert.Equal(t, []string{"fix", "all"}, byField["mode"].Params["options"])
	assert.Equal(t, "ERR_LTE", byField["limit"].Code)
	assert.Equal(t, "1000", byField["limit"].Params["max"])
}

func TestReadAndValidateRequest_BindError(t *testing.T) {
	req := &listRequest{}
	verr := ReadAndValidateRequest(newContext("/x?inst_id=a&limit=abc"), req)
	require.Len(t, verr, 1)
	assert.Equal(t, "ERR_BIND", verr[0].Code)
	assert.Equal(t, "limit", verr[0].Field)
}

func TestReadAndValidateRequest_BindErrorNamesFloatParam(t *testing.T) {
	req := &struct {
		Pct float64 `query:"pct" json:"pct"`
	}{}
	verr := ReadAndValidateRequest(newContext("/x?pct=1.2.3"), req)
	require.Len(t, verr, 1)
	assert.Equal(t, "ERR_BIND", verr[0].Code)
	assert.Equal(t, "pct", verr[0].Field)

	verr = ReadAndValidateRequest(newContext("/x?pct=-1.2"), req)
	require.Nil(t, verr)
	assert.Equal(t, -1.2, req.Pct)
}
