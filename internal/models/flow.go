package models

import "gorm.io/gorm"

// Viewport is the camera position of a flow diagram.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// FlowContent is the diagram payload. Nodes and edges are intentionally opaque
// records; only the envelope shape is typed.
type FlowContent struct {
	Nodes    []map[string]interface{} `json:"nodes"`
	Edges    []map[string]interface{} `json:"edges"`
	Viewport Viewport                 `json:"viewport"`
}

// NewFlowContent returns an empty diagram with the default viewport.
func NewFlowContent() FlowContent {
	return FlowContent{
		Nodes:    []map[string]interface{}{},
		Edges:    []map[string]interface{}{},
		Viewport: Viewport{X: 0, Y: 0, Zoom: 1},
	}
}

// Flow is the stored diagram document. UserID is immutable after creation and
// must equal the UserID of the FlowSummary referencing this flow.
type Flow struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string      `json:"userId" gorm:"index;type:varchar(36)"`
	Content    FlowContent `json:"flow" gorm:"serializer:json"`
	gorm.Model             // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
