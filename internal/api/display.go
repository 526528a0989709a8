package api

import "fmt"

// ChannelDisplay carries the rendered status display.
const ChannelDisplay = "display"

// Display views.
const (
	ViewNormal = "normal"
	ViewAlert  = "alert"
)

// DisplayFrame is what the panel draws on its status display.
type DisplayFrame struct {
	View  string   `json:"view"`
	Lines []string `json:"lines"`
}

// HubDisplay renders the status display to WebSocket clients on the
// "display" channel. The hub replays the current frame to late subscribers.
type HubDisplay struct {
	hub *Hub
}

// NewHubDisplay returns a display that draws through hub.
func NewHubDisplay(hub *Hub) *HubDisplay {
	return &HubDisplay{hub: hub}
}

// ShowNormal draws the capacity and the current count.
func (d *HubDisplay) ShowNormal(maxAllowed, count int) {
	d.show(DisplayFrame{
		View: ViewNormal,
		Lines: []string{
			fmt.Sprintf("MAX : %d", maxAllowed),
			fmt.Sprintf("CURRENT : %d", count),
		},
	})
}

// ShowAlert draws the over-capacity warning.
func (d *HubDisplay) ShowAlert() {
	d.show(DisplayFrame{View: ViewAlert, Lines: []string{"WARNING!"}})
}

func (d *HubDisplay) show(frame DisplayFrame) {
	d.hub.Broadcast(ChannelDisplay, frame)
}
