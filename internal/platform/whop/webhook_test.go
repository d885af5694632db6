package whop

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"action":"payment.succeeded","data":{"id":"pay_1"}}`)
	now := time.Unix(1_700_000_000, 0)

	if err := VerifySignature(secret, SignatureHeader(secret, now, body), body, now, 0); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature(secret, SignatureHeader("other", now, body), body, now, 0); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if err := VerifySignature(secret, SignatureHeader(secret, now, body), []byte(`{}`), now, 0); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered body accepted: %v", err)
	}
	old := now.Add(-10 * time.Minute)
	if err := VerifySignature(secret, SignatureHeader(secret, old, body), body, now, 0); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if err := VerifySignature(secret, "", body, now, 0); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("expected missing, got %v", err)
	}
	if err := VerifySignature(secret, "t=abc,v1=00", body, now, 0); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected invalid for bad timestamp, got %v", err)
	}
}

func TestParsePaymentEvent(t *testing.T) {
	body := []byte(`{
		"action": "payment.succeeded",
		"data": {
			"id": "pay_42",
			"final_amount": 5,
			"currency": "usd",
			"user_id": "user_x",
			"metadata": {"userId": "u-1", "companyId": "biz_1", "purchaseType": "additional", "generationsIncluded": "3"}
		}
	}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.DeliveryID() != "payment.succeeded:pay_42" {
		t.Fatalf("unexpected delivery id %q", ev.DeliveryID())
	}
	p, err := ev.Payment()
	if err != nil {
		t.Fatalf("Payment: %v", err)
	}
	if p.Generations() != 3 || p.AmountCents() != 500 || p.Metadata.PurchaseType != PurchaseAdditional {
		t.Fatalf("unexpected payment: %+v", p)
	}
	p.Metadata.GenerationsIncluded = ""
	if p.Generations() != 1 {
		t.Fatalf("default generations should be 1")
	}
	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing action")
	}
}
