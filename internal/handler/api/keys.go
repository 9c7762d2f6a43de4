package api

import (
	"SybilScan/internal/domain/models"
	drepo "SybilScan/internal/domain/repository"
	"SybilScan/internal/service/auth"
	xhttp "SybilScan/pkg/http"
	xlogger "SybilScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// KeysHandler issues and checks API keys.
type KeysHandler struct {
	logger *xlogger.Logger
	keys   drepo.KeyStore
}

func NewKeysHandler(logger *xlogger.Logger, keys drepo.KeyStore) *KeysHandler {
	return &KeysHandler{logger: logger, keys: keys}
}

func (h *KeysHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1/keys")
	g.POST("", h.Create)
	g.GET("/validate", h.Validate)
}

func (h *KeysHandler) Create(c echo.Context) error {
	req := &models.CreateKeyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key, err := auth.NewKey()
	if err != nil {
		h.logger.Error("generate api key", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	k := models.APIKey{Key: key, Name: req.Name}
	if err := h.keys.Create(c.Request().Context(), k); err != nil {
		h.logger.Error("store api key", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	h.logger.Info("api key issued", xlogger.String("name", req.Name))
	return xhttp.CreatedResponse(c, k)
}

type validateResponse struct {
	Valid bool `json:"valid"`
	models.APIKey
}

func (h *KeysHandler) Validate(c echo.Context) error {
	key := auth.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if key == "" {
		return xhttp.UnauthorizedResponse(c, "missing API key")
	}
	k, ok, err := h.keys.Get(c.Request().Context(), key)
	if err != nil {
		h.logger.Error("api key lookup", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("key store unavailable"))
	}
	if !ok {
		return xhttp.UnauthorizedResponse(c, validateResponse{Valid: false})
	}
	return xhttp.SuccessResponse(c, validateResponse{Valid: true, APIKey: k})
}
