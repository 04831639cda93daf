// Package status serves a read-only HTTP view of a running proxy.
package status

import (
	"encoding/json"
	"net/http"

	"goji.io"
	"goji.io/pat"
)

// Snapshot is the JSON structure returned by GET /stats.
type Snapshot struct {
	Source    string `json:"source"`
	Connected bool   `json:"connected"`
	Clients   int    `json:"clients"`
	Frames    uint64 `json:"frames"`
	Dropped   uint64 `json:"dropped"`
}

// ChannelListResponse is the JSON structure returned by GET /channels.
type ChannelListResponse struct {
	Channels []string `json:"channels"`
}

// Provider is implemented by the proxy.
type Provider interface {
	Snapshot() Snapshot
	ChannelNames() []string
}

// Server is an http.Handler that serves the status endpoints.
type Server struct {
	*goji.Mux
	p Provider
}

// New creates a Server.
func New(p Provider) Server {
	s := Server{
		Mux: goji.NewMux(),
		p:   p,
	}
	s.Handle(pat.Get("/channels"), http.HandlerFunc(s.listChannels))
	s.Handle(pat.Get("/stats"), http.HandlerFunc(s.stats))
	return s
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	out := ChannelListResponse{
		Channels: []string{}, // non-null empty list
	}
	out.Channels = append(out.Channels, s.p.ChannelNames()...)
	writeJSON(w, &out)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	out := s.p.Snapshot()
	writeJSON(w, &out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
	}
}
