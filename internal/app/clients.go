package app

import (
	"context"
	"fmt"

	"github.com/yungbote/coursebuilder-backend/internal/platform/anthropic"
	"github.com/yungbote/coursebuilder-backend/internal/platform/gcp"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/openai"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/realtime/bus"
)

type Clients struct {
	Bus      bus.Bus
	LLM      llm.Client
	Blobs    gcp.BlobStore
	OCR      gcp.OCR
	Whop     *whop.Client
	Verifier *whop.TokenVerifier
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.Redis.Enabled() {
		b, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return out, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; lifecycle events stay in-process")
		out.Bus = bus.NewMemoryBus()
	}

	// LLM
	switch cfg.LLM.Provider {
	case llm.ProviderAnthropic:
		c, err := anthropic.NewClient(log, cfg.LLM.Anthropic)
		if err != nil {
			return out, fmt.Errorf("init anthropic: %w", err)
		}
		out.LLM = c
	default:
		c, err := openai.NewClient(log, cfg.LLM.OpenAI)
		if err != nil {
			return out, fmt.Errorf("init openai: %w", err)
		}
		out.LLM = c
	}

	// GCP
	blobs, err := gcp.NewBucketService(ctx, log, cfg.GCP.Storage)
	if err != nil {
		return out, fmt.Errorf("init object storage: %w", err)
	}
	out.Blobs = blobs
	if cfg.GCP.DocumentAI.ProcessorID != "" {
		ocr, err := gcp.NewDocumentOCR(ctx, log, cfg.GCP.DocumentAI)
		if err != nil {
			return out, fmt.Errorf("init document ai: %w", err)
		}
		out.OCR = ocr
	} else {
		log.Info("DOCUMENTAI_PROCESSOR_ID not set; OCR fallback disabled")
	}

	// Whop
	wc, err := whop.NewClient(log, cfg.Whop.Client)
	if err != nil {
		return out, fmt.Errorf("init whop client: %w", err)
	}
	out.Whop = wc
	verifier, err := whop.NewTokenVerifier(cfg.Whop.Auth)
	if err != nil {
		return out, fmt.Errorf("init whop token verifier: %w", err)
	}
	if cfg.Whop.Auth.DevUserID != "" {
		log.Warn("DEV_WHOP_USER_ID set; unauthenticated requests act as the dev user")
	}
	out.Verifier = verifier
	return out, nil
}

func (c Clients) Close(log *logger.Logger) {
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			log.Warn("close bus", "error", err)
		}
	}
	if c.OCR != nil {
		if err := c.OCR.Close(); err != nil {
			log.Warn("close document ai", "error", err)
		}
	}
	if c.Blobs != nil {
		if err := c.Blobs.Close(); err != nil {
			log.Warn("close object storage", "error", err)
		}
	}
}
