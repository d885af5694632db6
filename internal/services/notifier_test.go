package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/realtime"
	"github.com/yungbote/coursebuilder-backend/internal/realtime/bus"
)

func TestGenerationNotifierPublishesToOwnerChannel(t *testing.T) {
	b := bus.NewMemoryBus()
	n := NewGenerationNotifier(b, testutil.Logger(t))
	gen := &types.CourseGeneration{ID: uuid.New(), UserID: uuid.New(), Status: course.StatusFailed, Title: "T"}

	n.GenerationFailed(gen, "outline response invalid: empty")
	n.CoursePublished(gen, "https://whop.com/hub/biz/experiences/exp")

	sent := b.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].Channel != gen.UserID.String() || sent[0].Event != realtime.EventGenerationFailed {
		t.Fatalf("unexpected first message: %+v", sent[0])
	}
	data := sent[0].Data.(map[string]any)
	if data["error"] != "outline response invalid: empty" {
		t.Fatalf("error not carried: %v", data)
	}
	if sent[1].Event != realtime.EventCoursePublished {
		t.Fatalf("unexpected second event: %s", sent[1].Event)
	}
}

func TestNotifiersTolerateNilBus(t *testing.T) {
	log := testutil.Logger(t)
	NewGenerationNotifier(nil, log).GenerationStarted(&types.CourseGeneration{ID: uuid.New(), UserID: uuid.New()})
	NewJobNotifier(nil, log).JobDone(uuid.New(), nil)
}
