package whop

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "x-whop-signature"

	ActionPaymentSucceeded = "payment.succeeded"

	PurchaseGrowth     = "growth"
	PurchaseAdditional = "additional"
)

var (
	ErrSignatureMissing = errors.New("whop webhook signature missing")
	ErrSignatureInvalid = errors.New("whop webhook signature invalid")
	ErrSignatureExpired = errors.New("whop webhook signature outside tolerance")
)

const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks a "t=<unix>,v1=<hex>" header against
// HMAC-SHA256(secret, "<t>.<body>").
func VerifySignature(secret string, header string, body []byte, now time.Time, tolerance time.Duration) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrSignatureMissing
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrSignatureInvalid
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > tolerance || age < -tolerance {
		return ErrSignatureExpired
	}
	expected := Sign(secret, ts, body)
	for _, s := range sigs {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(s))) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// Sign returns the hex v1 signature for a timestamp and body.
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a header value; used by tests and local tooling.
func SignatureHeader(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + Sign(secret, ts, body)
}

type Event struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type PaymentMetadata struct {
	UserID              string `json:"userId"`
	CompanyID           string `json:"companyId"`
	PurchaseType        string `json:"purchaseType"`
	GenerationsIncluded string `json:"generationsIncluded"`
}

type Payment struct {
	ID           string          `json:"id"`
	FinalAmount  float64         `json:"final_amount"`
	Currency     string          `json:"currency"`
	UserID       string          `json:"user_id"`
	CompanyID    string          `json:"company_id"`
	MembershipID string          `json:"membership_id"`
	Metadata     PaymentMetadata `json:"metadata"`
}

// AmountCents converts the dollar amount Whop reports to integer cents.
func (p Payment) AmountCents() int64 {
	return int64(p.FinalAmount*100 + 0.5)
}

// Generations is the credit count carried in metadata, defaulting to 1.
func (p Payment) Generations() int {
	n, err := strconv.Atoi(strings.TrimSpace(p.Metadata.GenerationsIncluded))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode whop webhook: %w", err)
	}
	if strings.TrimSpace(ev.Action) == "" {
		return Event{}, fmt.Errorf("whop webhook missing action")
	}
	return ev, nil
}

// DeliveryID is the dedupe key for an event: its own id, else action plus the
// data object's id.
func (e Event) DeliveryID() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(e.Data, &obj)
	if obj.ID == "" {
		return ""
	}
	return e.Action + ":" + obj.ID
}

func (e Event) Payment() (Payment, error) {
	var p Payment
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return Payment{}, fmt.Errorf("decode payment: %w", err)
	}
	if p.ID == "" {
		return Payment{}, fmt.Errorf("payment missing id")
	}
	return p, nil
}
