package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op distinguishes the two export events that travel over the queue.
type Op string

const (
	OpSync   Op = "sync"
	OpDelete Op = "delete"
)

// MealEvent is the lightweight queue payload: the worker fetches the full
// record from storage by id, so the event only carries identity and
// version (version lets stale messages be recognized after an update).
type MealEvent struct {
	Op        Op        `json:"op"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncEvent creates an export event for a created or updated meal.
func NewSyncEvent(id, version int64) *MealEvent {
	return &MealEvent{Op: OpSync, ID: id, Version: version, Timestamp: time.Now()}
}

// NewDeleteEvent creates an export event for a deleted meal.
func NewDeleteEvent(id int64) *MealEvent {
	return &MealEvent{Op: OpDelete, ID: id, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (e *MealEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// MealEventFromJSON parses an event from queue bytes, rejecting unknown ops.
func MealEventFromJSON(data []byte) (*MealEvent, error) {
	var e MealEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Op {
	case OpSync, OpDelete:
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown meal event op: %q", e.Op)
	}
}
