package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"chama-backend/internal/adapter/middleware"
	loanuc "chama-backend/internal/usecase/loan"
	"chama-backend/internal/usecase/payment"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	loans    *loanuc.Usecase
	payments *payment.Usecase
	log      *slog.Logger
}

func NewLoanHandler(loans *loanuc.Usecase, payments *payment.Usecase, log *slog.Logger) *LoanHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LoanHandler{loans: loans, payments: payments, log: log}
}

type rejectReq struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type payReq struct {
	Amount decimal.Decimal `json:"amount" validate:"required,dec2,gt=0"`
}

func (h *LoanHandler) Apply(c echo.Context) error {
	var req loanuc.ApplyInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.loans.Apply(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) Get(c echo.Context) error {
	dto, err := h.loans.Get(c.Request().Context(), c.Param("loan_number"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListPayments(c echo.Context) error {
	out, err := h.loans.ListPayments(c.Request().Context(), c.Param("loan_number"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) History(c echo.Context) error {
	out, err := h.loans.History(c.Request().Context(), c.Param("loan_number"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) ListByMember(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("member_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid member_id path param"})
	}
	out, err := h.loans.ListByMember(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Approve(c echo.Context) error {
	dto, err := h.loans.Approve(c.Request().Context(), middleware.ActorFrom(c), c.Param("loan_number"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Reject(c echo.Context) error {
	var req rejectReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.loans.Reject(c.Request().Context(), middleware.ActorFrom(c), c.Param("loan_number"), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Disburse(c echo.Context) error {
	dto, err := h.loans.Disburse(c.Request().Context(), middleware.ActorFrom(c), c.Param("loan_number"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Pay(c echo.Context) error {
	var req payReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	res, err := h.payments.Pay(c.Request().Context(), middleware.ActorFrom(c), c.Param("loan_number"), req.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}
