// Package protocol defines the JSON envelope exchanged with browser clients
// over the swarm stream.
package protocol

import (
	"encoding/json"
)

// Client to server.
const (
	MsgHello  = "hello"
	MsgPress  = "press"
	MsgResize = "resize"
	MsgToggle = "toggle"
)

// Server to client.
const (
	MsgWelcome = "welcome"
	MsgFrame   = "frame"
)

// Envelope wraps every message; P is decoded according to T.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

type Hello struct {
	Name string `json:"name,omitempty"`
}

// Press is a pointer press or touch start in page coordinates.
type Press struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Resize reports the client's container size.
type Resize struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Toggle struct{}

type Welcome struct {
	ClientID  string `json:"clientId"`
	FrameRate int    `json:"frameRate"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AgentSnapshot is the rendered transform of one agent.
type AgentSnapshot struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"` // degrees
}

// Frame is the state broadcast to clients and recorded to storage.
type Frame struct {
	Frame   uint64          `json:"frame"`
	Visible bool            `json:"visible"`
	Phase   string          `json:"phase"`
	Width   float64         `json:"width"`
	Height  float64         `json:"height"`
	Target  Point           `json:"target"`
	Agents  []AgentSnapshot `json:"agents"`
}
