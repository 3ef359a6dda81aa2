package mpesa

import (
	"context"
	"time"
)

// TimestampLayout is the provider's yyyyMMddHHmmss format, used both for the
// request password and for TransactionDate in callbacks.
const TimestampLayout = "20060102150405"

// Nairobi is East Africa Time. Kenya observes no DST.
var Nairobi = time.FixedZone("EAT", 3*60*60)

// PushRequest asks the provider to prompt a phone for payment.
type PushRequest struct {
	PhoneNumber      string // 2547XXXXXXXX
	Amount           int64  // whole shillings
	AccountReference string
	Description      string
}

// PushAck is the provider's synchronous acknowledgement. The outcome arrives
// later on the callback keyed by CheckoutRequestID.
type PushAck struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

func (a PushAck) Accepted() bool { return a.ResponseCode == "0" && a.CheckoutRequestID != "" }

type Gateway interface {
	STKPush(ctx context.Context, req PushRequest) (*PushAck, error)
}
