// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import (
	"sync"

	"github.com/debemdeboas/war-room/internal/model"
	"github.com/rs/zerolog"
)

var sseLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

// Event is one server-sent event. Data is sent as a single line.
type Event struct {
	Name string
	Data string
}

type Client struct {
	Msg chan Event
	// PostID limits the client to events about one post. Empty receives everything.
	PostID model.PostID
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast delivers ev to every matching client. Slow clients miss events instead of blocking.
func (s *SSEClients) Broadcast(postID model.PostID, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.PostID == "" || postID == "" || client.PostID == postID {
			select {
			case client.Msg <- ev:
			default:
				sseLogger.Debug().Str("event", ev.Name).Msg("Dropped event for slow client")
			}
		}
	}
}
