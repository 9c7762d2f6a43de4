package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRequest struct {
	Addresses []string `json:"addresses" validate:"required,min=1,dive,required,evmaddr"`
	Chain     string   `json:"chain" default:"eth" validate:"oneof=eth base"`
}

type pageQuery struct {
	ID    string `param:"id" validate:"required,uuid"`
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func bind(t *testing.T, target, body string) (*batchRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	out := &batchRequest{}
	if verr := ReadAndValidateRequest(c, out); verr != nil {
		errs, ok := verr.([]ValidationError)
		require.True(t, ok)
		return out, errs
	}
	return out, nil
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	req, errs := bind(t, "/", `{"addresses":["0x52908400098527886E0F7030069857D2E4169EE7"]}`)
	require.Empty(t, errs)
	assert.Equal(t, "eth", req.Chain)
}

func TestReadAndValidateReportsElementIndex(t *testing.T) {
	_, errs := bind(t, "/", `{"addresses":["0x52908400098527886E0F7030069857D2E4169EE7","0x12"]}`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INVALID_ADDRESS", errs[0].Code)
	assert.Equal(t, "addresses", errs[0].Field)
	assert.Equal(t, 1, errs[0].Params["index"])
}

func TestReadAndValidateFieldNames(t *testing.T) {
	_, errs := bind(t, "/", `{"addresses":[],"chain":"solana"}`)
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_MIN", codes["addresses"])
	assert.Equal(t, "ERR_UNSUPPORTED", codes["chain"])
}

func TestReadAndValidateQueryAndPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=5000", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	verr := ReadAndValidateRequest(c, &pageQuery{})
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_INVALID_ID", codes["id"])
	assert.Equal(t, "ERR_LTE", codes["limit"])
}

func TestReadAndValidateMalformedBody(t *testing.T) {
	_, errs := bind(t, "/", `{"addresses":`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED_REQUEST", errs[0].Code)
}
