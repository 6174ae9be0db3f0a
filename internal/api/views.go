package api

import (
	"time"

	"signal-hud.klederson.com/internal/scan"
	"signal-hud.klederson.com/internal/signal"
)

type signalsResponse struct {
	Signals []signal.SignalReading `json:"signals"`
	Count   int                    `json:"count"`
}

type trackedResponse struct {
	Active     bool                  `json:"active"`
	SourceType signal.SourceType     `json:"source_type,omitempty"`
	Identifier string                `json:"identifier,omitempty"`
	Located    bool                  `json:"located"`
	Position   *signal.Position      `json:"estimated_position,omitempty"`
	Reading    *signal.SignalReading `json:"reading,omitempty"`
}

func trackedView(t signal.Tracked) trackedResponse {
	return trackedResponse{
		Active:     t.Active,
		SourceType: t.Source,
		Identifier: t.Identifier,
		Located:    t.Located(),
		Position:   t.Position,
		Reading:    t.Reading,
	}
}

type trackRequest struct {
	SourceType string `json:"source_type"`
	Identifier string `json:"identifier"`
}

type statusResponse struct {
	Node    string                     `json:"node,omitempty"`
	Uptime  string                     `json:"uptime"`
	Anchors map[string]signal.Position `json:"anchors"`
	Counts  map[signal.SourceType]int  `json:"counts"`
	Loops   []scan.LoopStatus          `json:"loops"`
	Clients int                        `json:"ws_clients"`
	Time    time.Time                  `json:"time"`
}

type pushMessage struct {
	Signals []signal.SignalReading `json:"signals"`
	Tracked trackedResponse        `json:"tracked"`
}

type errorResponse struct {
	Error string `json:"error"`
}
