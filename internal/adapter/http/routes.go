package http

import (
	"net/http"

	"chama-backend/internal/adapter/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health        *Handler
	Loans         *LoanHandler
	Contributions *ContributionHandler
	Mpesa         *MpesaHandler
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
}

// Register mounts every route. idem guards the mutating member routes and
// may be nil when Redis is not configured.
func Register(e *echo.Echo, h Handlers, idem echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	// provider callback: no member identity, no idempotency key
	e.POST("/api/mpesa/callback", h.Mpesa.Callback)

	var guarded []echo.MiddlewareFunc
	if idem != nil {
		guarded = append(guarded, idem)
	}

	api := e.Group("/api", middleware.Actor())

	api.POST("/loans", h.Loans.Apply, guarded...)
	api.GET("/loans/:loan_number", h.Loans.Get)
	api.GET("/loans/:loan_number/payments", h.Loans.ListPayments)
	api.GET("/loans/:loan_number/transitions", h.Loans.History)
	api.PUT("/loans/:loan_number/approve", h.Loans.Approve)
	api.PUT("/loans/:loan_number/reject", h.Loans.Reject)
	api.PUT("/loans/:loan_number/disburse", h.Loans.Disburse)
	api.POST("/loans/:loan_number/payments", h.Loans.Pay, guarded...)

	api.POST("/contributions", h.Contributions.Contribute, guarded...)
	api.GET("/members/:member_id/loans", h.Loans.ListByMember)
	api.GET("/members/:member_id/contributions", h.Contributions.ListByMember)

	api.POST("/mpesa/stk-push", h.Mpesa.STKPush, guarded...)
	api.GET("/mpesa/transactions/:checkout_request_id", h.Mpesa.Status)
}
