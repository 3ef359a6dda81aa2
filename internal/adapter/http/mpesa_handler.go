package http

import (
	"io"
	"log/slog"
	"net/http"

	"chama-backend/internal/adapter/middleware"
	"chama-backend/internal/usecase/collection"
	"chama-backend/internal/usecase/reconcile"

	"github.com/labstack/echo/v4"
)

const maxCallbackBody = 1 << 20

type MpesaHandler struct {
	collection *collection.Usecase
	reconciler *reconcile.Usecase
	log        *slog.Logger
}

func NewMpesaHandler(col *collection.Usecase, rec *reconcile.Usecase, log *slog.Logger) *MpesaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MpesaHandler{collection: col, reconciler: rec, log: log}
}

func (h *MpesaHandler) STKPush(c echo.Context) error {
	var req collection.InitiateInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	res, err := h.collection.Initiate(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MpesaHandler) Status(c echo.Context) error {
	res, err := h.collection.Status(c.Request().Context(), middleware.ActorFrom(c), c.Param("checkout_request_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Callback is called by the provider. Anything short of a storage failure is
// acknowledged with OK; a 500 lets the provider redeliver.
func (h *MpesaHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		h.log.WarnContext(ctx, "mpesa: callback body unreadable", "err", err)
	}
	if _, err := h.reconciler.Handle(ctx, body); err != nil {
		return c.String(http.StatusInternalServerError, "ERROR")
	}
	return c.String(http.StatusOK, "OK")
}
