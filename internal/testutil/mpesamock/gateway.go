package mpesamock

import (
	"context"
	"sync"

	"chama-backend/internal/domain/mpesa"
)

var _ mpesa.Gateway = (*Gateway)(nil)

// Gateway records every push. Without STKPushFn it acknowledges with a
// fixed checkout id.
type Gateway struct {
	STKPushFn func(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushAck, error)

	mu    sync.Mutex
	calls []mpesa.PushRequest
}

// Accepting acknowledges every push with checkoutID.
func Accepting(checkoutID string) *Gateway {
	return &Gateway{STKPushFn: func(context.Context, mpesa.PushRequest) (*mpesa.PushAck, error) {
		return &mpesa.PushAck{
			MerchantRequestID:   "mr-" + checkoutID,
			CheckoutRequestID:   checkoutID,
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		}, nil
	}}
}

// Failing returns err for every push.
func Failing(err error) *Gateway {
	return &Gateway{STKPushFn: func(context.Context, mpesa.PushRequest) (*mpesa.PushAck, error) { return nil, err }}
}

func (g *Gateway) STKPush(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushAck, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.STKPushFn != nil {
		return g.STKPushFn(ctx, req)
	}
	return Accepting("ws_CO_TEST").STKPushFn(ctx, req)
}

func (g *Gateway) Calls() []mpesa.PushRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]mpesa.PushRequest(nil), g.calls...)
}
