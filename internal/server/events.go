package server

import (
	"encoding/json"

	"github.com/debemdeboas/war-room/internal/middleware"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/sse"
)

// ChangeBroadcaster returns a repository change notifier that fans changes out
// to event stream clients as {"kind":...,"post_id":...}.
func ChangeBroadcaster(events *sse.SSEClients, metrics *middleware.Metrics) func(repository.Change) {
	return func(c repository.Change) {
		if metrics != nil {
			metrics.ObservePostChange(string(c.Kind))
		}

		data, err := json.Marshal(c)
		if err != nil {
			serverLogger.Error().Err(err).Msg("Error encoding change event")
			return
		}
		events.Broadcast(c.PostID, sse.Event{Name: string(c.Kind), Data: string(data)})
	}
}
