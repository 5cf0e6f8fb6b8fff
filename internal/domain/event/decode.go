package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// DecodeError means a known event type carried a payload that does not match its shape.
type DecodeError struct {
	EventID string
	Type    string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event %s: %v", e.Type, e.EventID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Wire shapes of the provider objects, limited to the fields the pipeline reads.

type checkoutSessionObject struct {
	ID                string            `json:"id" validate:"required"`
	Mode              string            `json:"mode" validate:"required,oneof=payment subscription setup"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     string            `json:"payment_intent"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total" validate:"gte=0"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

type priceObject struct {
	ID        string `json:"id"`
	Recurring *struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
}

type subscriptionObject struct {
	ID                 string            `json:"id" validate:"required"`
	Customer           string            `json:"customer" validate:"required"`
	Status             string            `json:"status" validate:"required"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price priceObject `json:"price"`
		} `json:"data" validate:"required,min=1"`
	} `json:"items"`
}

type invoiceObject struct {
	ID            string `json:"id" validate:"required"`
	Customer      string `json:"customer" validate:"required"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	AmountPaid    int64  `json:"amount_paid"`
	AttemptCount  int64  `json:"attempt_count"`
	Lines         struct {
		Data []struct {
			Price  *priceObject `json:"price"`
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// Decode maps an envelope onto its variant. Unknown types become Unhandled.
func Decode(env Envelope) (Event, error) {
	meta := Meta{ID: env.ID, Type: env.Type, Created: env.Created}

	switch env.Type {
	case TypeCheckoutSessionCompleted:
		var obj checkoutSessionObject
		if err := unmarshal(env, &obj); err != nil {
			return nil, err
		}
		ev := CheckoutSessionCompleted{
			Meta:              meta,
			SessionID:         obj.ID,
			Mode:              obj.Mode,
			PaymentStatus:     obj.PaymentStatus,
			PaymentIntentID:   obj.PaymentIntent,
			CustomerID:        obj.Customer,
			SubscriptionID:    obj.Subscription,
			ClientReferenceID: obj.ClientReferenceID,
			Amount:            fromCents(obj.AmountTotal),
			Currency:          obj.Currency,
			Metadata:          nonNil(obj.Metadata),
		}
		if obj.CustomerDetails != nil {
			ev.CustomerEmail = obj.CustomerDetails.Email
			ev.CustomerName = obj.CustomerDetails.Name
		}
		return ev, nil

	case TypeSubscriptionCreated, TypeSubscriptionUpdated:
		var obj subscriptionObject
		if err := unmarshal(env, &obj); err != nil {
			return nil, err
		}
		price := obj.Items.Data[0].Price
		ev := SubscriptionChanged{
			Meta:               meta,
			SubscriptionID:     obj.ID,
			CustomerID:         obj.Customer,
			Status:             obj.Status,
			PriceID:            price.ID,
			CurrentPeriodStart: fromUnix(obj.CurrentPeriodStart),
			CurrentPeriodEnd:   fromUnix(obj.CurrentPeriodEnd),
			Metadata:           nonNil(obj.Metadata),
		}
		if price.Recurring != nil {
			ev.Interval = price.Recurring.Interval
		}
		return ev, nil

	case TypeSubscriptionDeleted:
		var obj subscriptionObject
		if err := json.Unmarshal(env.Payload, &obj); err != nil {
			return nil, &DecodeError{EventID: env.ID, Type: env.Type, Err: err}
		}
		if obj.ID == "" {
			return nil, &DecodeError{EventID: env.ID, Type: env.Type, Err: fmt.Errorf("subscription id is empty")}
		}
		return SubscriptionDeleted{
			Meta:           meta,
			SubscriptionID: obj.ID,
			CustomerID:     obj.Customer,
			Metadata:       nonNil(obj.Metadata),
		}, nil

	case TypeInvoicePaymentSucceeded:
		var obj invoiceObject
		if err := unmarshal(env, &obj); err != nil {
			return nil, err
		}
		ev := InvoicePaymentSucceeded{
			Meta:           meta,
			InvoiceID:      obj.ID,
			CustomerID:     obj.Customer,
			SubscriptionID: obj.Subscription,
			BillingReason:  obj.BillingReason,
			AmountPaid:     fromCents(obj.AmountPaid),
		}
		if len(obj.Lines.Data) > 0 {
			line := obj.Lines.Data[0]
			if line.Price != nil {
				ev.PriceID = line.Price.ID
			}
			ev.PeriodStart = fromUnix(line.Period.Start)
			ev.PeriodEnd = fromUnix(line.Period.End)
		}
		return ev, nil

	case TypeInvoicePaymentFailed:
		var obj invoiceObject
		if err := unmarshal(env, &obj); err != nil {
			return nil, err
		}
		return InvoicePaymentFailed{
			Meta:           meta,
			InvoiceID:      obj.ID,
			CustomerID:     obj.Customer,
			SubscriptionID: obj.Subscription,
			AttemptCount:   obj.AttemptCount,
		}, nil

	default:
		return Unhandled{Meta: meta}, nil
	}
}

func unmarshal(env Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return &DecodeError{EventID: env.ID, Type: env.Type, Err: err}
	}
	if err := validate.Struct(out); err != nil {
		return &DecodeError{EventID: env.ID, Type: env.Type, Err: err}
	}
	return nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
