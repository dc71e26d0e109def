package events

import (
	"encoding/json"
	"fmt"

	"pharmapos/internal/domain"
)

const (
	TypeProductUpdate  = "product_update"
	TypeProductDeleted = "product_deleted"
	TypeDataReset      = "data_reset"
)

// Event is the frame written to every subscriber.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ProductUpdate struct {
	Product domain.Product `json:"product"`
}

type ProductDeleted struct {
	ID int64 `json:"id"`
}

type DataReset struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func encode(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	frame, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return frame, nil
}

// Decode parses a frame produced by Notify.
func Decode(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

func (e Event) ProductUpdate() (ProductUpdate, error) {
	var p ProductUpdate
	err := e.unmarshal(TypeProductUpdate, &p)
	return p, err
}

func (e Event) ProductDeleted() (ProductDeleted, error) {
	var p ProductDeleted
	err := e.unmarshal(TypeProductDeleted, &p)
	return p, err
}

func (e Event) DataReset() (DataReset, error) {
	var p DataReset
	err := e.unmarshal(TypeDataReset, &p)
	return p, err
}

func (e Event) unmarshal(want string, dst any) error {
	if e.Type != want {
		return fmt.Errorf("event is %s, not %s", e.Type, want)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", want, err)
	}
	return nil
}
