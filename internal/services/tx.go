package services

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// inTx runs fn in the caller's transaction when there is one, otherwise in a new one.
func inTx(dbc dbctx.Context, db *gorm.DB, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return db.WithContext(ctxutil.Default(dbc.Ctx)).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	})
}

func jsonOf(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte(`{}`))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

// recordUsageEvent appends an audit row. Failures are logged and swallowed;
// inside a transaction the insert runs under a savepoint so it cannot abort
// the caller's work.
func recordUsageEvent(dbc dbctx.Context, db *gorm.DB, repo repos.UsageEventRepo, log *logger.Logger, userID uuid.UUID, generationID *uuid.UUID, eventType string, meta map[string]any) {
	ev := &types.UsageEvent{
		ID:           uuid.New(),
		UserID:       userID,
		GenerationID: generationID,
		EventType:    eventType,
		Metadata:     jsonOf(meta),
	}
	var err error
	if dbc.Tx != nil {
		err = dbc.Tx.WithContext(ctxutil.Default(dbc.Ctx)).Transaction(func(sp *gorm.DB) error {
			return repo.Create(dbc.WithTx(sp), ev)
		})
	} else {
		err = repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: db}, ev)
	}
	if err != nil {
		log.Warn("usage event not recorded", "event_type", eventType, "user_id", userID, "error", err)
	}
}

func jsonRaw(b []byte) datatypes.JSON {
	if !json.Valid(b) {
		return jsonOf(map[string]any{"raw": string(b)})
	}
	return datatypes.JSON(append([]byte(nil), b...))
}
