package services

import "github.com/google/uuid"

// Realtime event types published to topic subscribers.
const (
	EventListingCreated   = "bib_listing.created"
	EventListingCancelled = "bib_listing.cancelled"
	EventListingSold      = "bib_listing.sold"
	EventSettingsUpdated  = "bib_settings.updated"
	EventMemberJoined     = "team_member.joined"
	EventMemberRemoved    = "team_member.removed"
	EventTeamUpdated      = "team.updated"
	EventWaiverPublished  = "waiver.published"
	EventWaiverAccepted   = "waiver.accepted"
)

// Publisher pushes a changed entity to everyone subscribed to topic.
type Publisher interface {
	Publish(topic uuid.UUID, eventType string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(uuid.UUID, string, any) {}

func publisherOrNoop(p Publisher) Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
