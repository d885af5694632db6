package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
)

const providerWhop = "whop"

type WebhookConfig struct {
	Secret    string        `yaml:"-" validate:"required"`
	Tolerance time.Duration `yaml:"tolerance"`
}

type WebhookOutcome struct {
	EventID string `json:"eventId"`
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WebhookService verifies and applies platform webhooks. Business no-ops
// (unknown action, unknown user) return an outcome, not an error, so the
// platform does not redeliver them.
type WebhookService interface {
	Handle(ctx context.Context, signature string, body []byte) (*WebhookOutcome, error)
}

type webhookService struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    WebhookConfig
	events repos.WebhookEventRepo
	users  UserService
	ledger UsageLedger
	now    func() time.Time
}

func NewWebhookService(db *gorm.DB, baseLog *logger.Logger, cfg WebhookConfig, events repos.WebhookEventRepo, users UserService, ledger UsageLedger) WebhookService {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = whop.DefaultSignatureTolerance
	}
	return &webhookService{
		db:     db,
		log:    baseLog.With("service", "WebhookService"),
		cfg:    cfg,
		events: events,
		users:  users,
		ledger: ledger,
		now:    time.Now,
	}
}

func (s *webhookService) Handle(ctx context.Context, signature string, body []byte) (*WebhookOutcome, error) {
	if err := whop.VerifySignature(s.cfg.Secret, signature, body, s.now(), s.cfg.Tolerance); err != nil {
		observability.Current().IncWebhookEvent("unknown", "bad_signature")
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	ev, err := whop.ParseEvent(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	deliveryID := ev.DeliveryID()
	if deliveryID == "" {
		return nil, fmt.Errorf("%w: webhook has no event id", apperr.ErrInvalidArgument)
	}
	out := &WebhookOutcome{EventID: deliveryID, Action: ev.Action}

	// The delivery row and its ledger effects commit together, so a failed
	// apply leaves no row and the platform's redelivery is processed.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row := &types.WebhookEvent{
			Provider:        providerWhop,
			ProviderEventID: deliveryID,
			Action:          ev.Action,
			Status:          billing.WebhookReceived,
			Payload:         jsonRaw(body),
		}
		inserted, err := s.events.Record(dbc, row)
		if err != nil {
			return fmt.Errorf("record webhook: %w", err)
		}
		if !inserted {
			out.Status = "duplicate"
			return nil
		}
		status, msg, err := s.apply(dbc, ev)
		if err != nil {
			return err
		}
		out.Status, out.Message = status, msg
		return s.events.MarkStatus(dbc, row.ID, status, msg)
	})
	if err != nil {
		observability.Current().IncWebhookEvent(ev.Action, "error")
		s.log.Error("webhook apply failed", "action", ev.Action, "event_id", deliveryID, "error", err)
		return nil, err
	}
	observability.Current().IncWebhookEvent(ev.Action, out.Status)
	s.log.Info("webhook handled", "action", ev.Action, "event_id", deliveryID, "status", out.Status)
	return out, nil
}

func (s *webhookService) apply(dbc dbctx.Context, ev whop.Event) (string, string, error) {
	if ev.Action != whop.ActionPaymentSucceeded {
		return billing.WebhookIgnored, "unhandled action", nil
	}
	p, err := ev.Payment()
	if err != nil {
		return billing.WebhookFailed, err.Error(), nil
	}
	companyID := firstNonEmpty(p.Metadata.CompanyID, p.CompanyID)
	user, err := s.users.Resolve(dbc, p.Metadata.UserID, p.UserID, companyID)
	if errors.Is(err, apperr.ErrNotFound) {
		return billing.WebhookFailed, "user not found", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve user: %w", err)
	}

	switch strings.TrimSpace(p.Metadata.PurchaseType) {
	case whop.PurchaseAdditional:
		meta := map[string]any{"currency": p.Currency, "companyId": companyID}
		gErr := dbc.Tx.Transaction(func(sp *gorm.DB) error {
			_, e := s.ledger.GrantCredits(dbc.WithTx(sp), user.ID, p.ID, p.Generations(), p.AmountCents(), meta)
			return e
		})
		if errors.Is(gErr, apperr.ErrAlreadyProcessed) {
			return billing.WebhookProcessed, "credits already granted", nil
		}
		if gErr != nil {
			return "", "", fmt.Errorf("grant credits: %w", gErr)
		}
		return billing.WebhookProcessed, fmt.Sprintf("granted %d credits", p.Generations()), nil
	case whop.PurchaseGrowth:
		if _, err := s.ledger.UpgradePlan(dbc, user, billing.PlanGrowth, p.MembershipID); err != nil {
			return "", "", fmt.Errorf("upgrade plan: %w", err)
		}
		return billing.WebhookProcessed, "upgraded to growth", nil
	default:
		return billing.WebhookIgnored, "unknown purchase type", nil
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
