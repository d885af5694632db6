package course_generate

import (
	"time"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

const heartbeatEvery = 30 * time.Second

type Pipeline struct {
	log      *logger.Logger
	pipeline services.GenerationPipeline
}

func New(baseLog *logger.Logger, pipeline services.GenerationPipeline) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", services.JobTypeCourseGenerate),
		pipeline: pipeline,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeCourseGenerate }
