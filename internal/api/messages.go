package api

import (
	"github.com/skobkin/nputop-web/internal/monitor"
	"github.com/skobkin/nputop-web/internal/tab"
)

// HelloMessage is the initial payload sent on WebSocket connection.
type HelloMessage struct {
	Type            string          `json:"type"`
	IntervalMS      int             `json:"interval_ms"`
	Tabs            []tab.View      `json:"tabs"`
	DefaultTab      string          `json:"default_tab,omitempty"`
	Features        map[string]bool `json:"features"`
	ChartsMaxPoints int             `json:"charts_max_points"`
}

// NewHelloMessage constructs a hello payload.
func NewHelloMessage(intervalMS int, tabs []tab.View, defaultTab string, features map[string]bool, chartsMaxPoints int) HelloMessage {
	if tabs == nil {
		tabs = []tab.View{}
	}
	return HelloMessage{
		Type:            "hello",
		IntervalMS:      intervalMS,
		Tabs:            tabs,
		DefaultTab:      defaultTab,
		Features:        features,
		ChartsMaxPoints: chartsMaxPoints,
	}
}

// TabMessage wraps a refreshed tab view for transport.
type TabMessage struct {
	Type string `json:"type"`
	tab.View
}

// NewTabMessage constructs a tab payload.
func NewTabMessage(view tab.View) TabMessage {
	return TabMessage{
		Type: "tab",
		View: view,
	}
}

// SeriesMessage carries the chart history of a tab. It follows every tab
// update while charts are enabled.
type SeriesMessage struct {
	Type  string `json:"type"`
	TabID string `json:"tab_id"`
	monitor.Series
}

// NewSeriesMessage constructs a series payload.
func NewSeriesMessage(tabID string, history monitor.Series) SeriesMessage {
	return SeriesMessage{
		Type:   "series",
		TabID:  tabID,
		Series: history,
	}
}

// ErrorMessage communicates an error condition to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientMessage is a generic envelope used for decoding inbound client messages.
type ClientMessage struct {
	Type string `json:"type"`
}

// SubscribeMessage requests updates for one tab.
type SubscribeMessage struct {
	Type  string `json:"type"`
	TabID string `json:"tab_id"`
}

// PongMessage is the response to a ping.
type PongMessage struct {
	Type string `json:"type"`
}

// IngestResponse reports the outcome of an ingest request.
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}
