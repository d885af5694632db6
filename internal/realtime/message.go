// Package realtime defines the lifecycle messages the backend publishes for
// other processes (dashboards, the editor, support tooling) to consume.
package realtime

type Event string

const (
	EventJobCreated  Event = "JobCreated"
	EventJobProgress Event = "JobProgress"
	EventJobFailed   Event = "JobFailed"
	EventJobDone     Event = "JobDone"

	EventGenerationStarted   Event = "GenerationStarted"
	EventGenerationCompleted Event = "GenerationCompleted"
	EventGenerationFailed    Event = "GenerationFailed"
	EventCoursePublished     Event = "CoursePublished"
)

// Message is addressed to a channel, which is the owning user's id.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}
