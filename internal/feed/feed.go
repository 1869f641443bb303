// internal/feed/feed.go
package feed

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one row change. New is set for insert and update, Old for delete.
type Event struct {
	Type  EventType       `json:"eventType"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// Row returns the row image the event is about.
func (e Event) Row() json.RawMessage {
	if e.Type == EventDelete || len(e.New) == 0 {
		return e.Old
	}
	return e.New
}

// Filter selects row changes on Table whose Column equals Value.
type Filter struct {
	Table  string
	Column string
	Value  string
}

func (f Filter) Channel() string {
	return ChannelName(f.Table, f.Column, f.Value)
}

func ChannelName(table, column, value string) string {
	return fmt.Sprintf("%s:%s=%s", table, column, value)
}

// Matches reports whether the event's row carries Column == Value.
func (f Filter) Matches(ev Event) bool {
	if ev.Table != f.Table {
		return false
	}
	v, ok := columnValue(ev.Row(), f.Column)
	return ok && v == f.Value
}

func columnValue(row json.RawMessage, column string) (string, bool) {
	if len(row) == 0 {
		return "", false
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(row, &fields); err != nil {
		return "", false
	}
	s, ok := fields[column].(string)
	return s, ok
}

type Handler func(Event)

type Subscription interface {
	Unsubscribe()
}
