package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chama-backend/internal/domain/mpesa"

	"github.com/shopspring/decimal"
)

// Callback is the part of an STK result notification the ledger uses.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// from CallbackMetadata, success only
	Receipt         string
	TransactionDate *time.Time
	Amount          *decimal.Decimal
	PhoneNumber     string
}

func (c Callback) Succeeded() bool { return c.ResultCode == 0 }

var ErrMalformed = errors.New("malformed callback")

type envelope struct {
	Body *struct {
		STKCallback *struct {
			MerchantRequestID string       `json:"MerchantRequestID"`
			CheckoutRequestID string       `json:"CheckoutRequestID"`
			ResultCode        *json.Number `json:"ResultCode"`
			ResultDesc        string       `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []metadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type metadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Parse decodes a provider callback. The returned Callback carries whatever
// was readable (at least the checkout id when present) even when err is set.
// Unknown metadata items are ignored.
func Parse(raw []byte) (Callback, error) {
	var cb Callback
	if len(bytes.TrimSpace(raw)) == 0 {
		return cb, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return cb, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Body == nil || env.Body.STKCallback == nil {
		return cb, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformed)
	}
	s := env.Body.STKCallback
	cb.MerchantRequestID = s.MerchantRequestID
	cb.CheckoutRequestID = strings.TrimSpace(s.CheckoutRequestID)
	cb.ResultDesc = s.ResultDesc
	if cb.CheckoutRequestID == "" {
		return cb, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformed)
	}
	if s.ResultCode == nil {
		return cb, fmt.Errorf("%w: missing ResultCode", ErrMalformed)
	}
	code, err := s.ResultCode.Int64()
	if err != nil {
		return cb, fmt.Errorf("%w: ResultCode %q is not an integer", ErrMalformed, s.ResultCode.String())
	}
	cb.ResultCode = int(code)
	if !cb.Succeeded() {
		return cb, nil
	}

	if s.CallbackMetadata != nil {
		for _, it := range s.CallbackMetadata.Item {
			switch it.Name {
			case "MpesaReceiptNumber":
				cb.Receipt = strings.TrimSpace(scalar(it.Value))
			case "TransactionDate":
				if ts, err := time.ParseInLocation(mpesa.TimestampLayout, scalar(it.Value), mpesa.Nairobi); err == nil {
					cb.TransactionDate = &ts
				}
			case "Amount":
				if amt, err := decimal.NewFromString(scalar(it.Value)); err == nil {
					cb.Amount = &amt
				}
			case "PhoneNumber":
				cb.PhoneNumber = scalar(it.Value)
			}
		}
	}
	if cb.Receipt == "" {
		return cb, fmt.Errorf("%w: success without MpesaReceiptNumber", ErrMalformed)
	}
	return cb, nil
}

// scalar renders a metadata value; the provider mixes numbers and strings.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
