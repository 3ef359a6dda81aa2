package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"chama-backend/internal/adapter/middleware"
	"chama-backend/internal/usecase/contribution"

	"github.com/labstack/echo/v4"
)

type ContributionHandler struct {
	uc  *contribution.Usecase
	log *slog.Logger
}

func NewContributionHandler(uc *contribution.Usecase, log *slog.Logger) *ContributionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ContributionHandler{uc: uc, log: log}
}

func (h *ContributionHandler) Contribute(c echo.Context) error {
	var req contribution.ContributeInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Contribute(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *ContributionHandler) ListByMember(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("member_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid member_id path param"})
	}
	out, err := h.uc.ListByMember(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
