package interfaces

import "vwap-reversion-bot/internal/types"

// DecisionPublisher fans decisions out to live observers. Publish must not block.
type DecisionPublisher interface {
	Publish(ev types.DecisionEvent)
}
