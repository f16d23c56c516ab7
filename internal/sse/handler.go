package sse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/rs/zerolog"
)

const clientBuffer = 16

// Handler streams events to the caller until the request is canceled.
// The optional "post" query parameter limits the stream to one post.
func (s *SSEClients) Handler(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeSSE)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := &Client{
		Msg:    make(chan Event, clientBuffer),
		PostID: model.PostID(r.URL.Query().Get("post")),
	}

	// Register before announcing so no event after "connected" is missed.
	s.Add(client)
	l.Info().Msg("New SSE client connected")

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	defer func() {
		s.Delete(client)
		l.Info().Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case ev := <-client.Msg:
			if err := Write(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func Write(w io.Writer, ev Event) error {
	var err error
	if ev.Name != "" {
		_, err = fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	if err == nil {
		_, err = fmt.Fprintf(w, "data: %s\n\n", strings.ReplaceAll(ev.Data, "\n", " "))
	}
	return err
}

// Read parses an event stream and calls fn for every complete event.
// It returns when the stream ends or fn returns an error.
func Read(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	var ev Event
	var data []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name != "" || len(data) > 0 {
				ev.Data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = Event{}, nil
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}
