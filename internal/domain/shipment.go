package domain

import (
	"strconv"
	"time"
)

type Mode string

const (
	ModeAir   Mode = "air"
	ModeOcean Mode = "ocean"
)

type Quote struct {
	ID            string  `json:"id"`
	Number        string  `json:"number"`
	Date          string  `json:"date"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	ConsigneeName string  `json:"consigneeName"`
	Status        string  `json:"status"`
	TotalAmount   float64 `json:"totalAmount"`
	Currency      string  `json:"currency"`
	Mode          Mode    `json:"mode,omitempty"`
}

func (q Quote) ItemKey() string {
	if q.Number != "" {
		return q.Number
	}
	return q.ID
}

func (q Quote) ItemNumber() string { return q.Number }

func (q Quote) SearchFields() SearchFields {
	return SearchFields{Identifier: q.Number, Origin: q.Origin, Destination: q.Destination, Date: q.Date}
}

type Shipment struct {
	ID              string `json:"id"`
	Number          string `json:"number"`
	Date            string `json:"date"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	ConsigneeName   string `json:"consigneeName"`
	Status          string `json:"status"`
	Carrier         string `json:"carrier"`
	WaybillNumber   string `json:"waybillNumber"`
	ContainerNumber string `json:"containerNumber,omitempty"`
	Mode            Mode   `json:"mode"`
}

func (s Shipment) ItemKey() string {
	if s.Number != "" {
		return s.Number
	}
	return s.ID
}

func (s Shipment) ItemNumber() string { return s.Number }

func (s Shipment) SearchFields() SearchFields {
	return SearchFields{Identifier: s.Number, Origin: s.Origin, Destination: s.Destination, Date: s.Date}
}

// TrackedShipment is a shipment registered with the tracking service.
type TrackedShipment struct {
	ID              int64     `json:"id"`
	Reference       string    `json:"reference"`
	AwbNumber       string    `json:"awb_number,omitempty"`
	ContainerNumber string    `json:"container_number,omitempty"`
	Status          string    `json:"status"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	CreatedAt       time.Time `json:"created_at"`
	Tags            []string  `json:"tags,omitempty"`
	Followers       []string  `json:"followers,omitempty"`
}

func (t TrackedShipment) ItemKey() string { return strconv.FormatInt(t.ID, 10) }

func (t TrackedShipment) ItemNumber() string { return strconv.FormatInt(t.ID, 10) }

func (t TrackedShipment) SearchFields() SearchFields {
	id := t.AwbNumber
	if id == "" {
		id = t.ContainerNumber
	}
	var date string
	if !t.CreatedAt.IsZero() {
		date = t.CreatedAt.Format(time.RFC3339)
	}
	return SearchFields{Identifier: id, Origin: t.Origin, Destination: t.Destination, Date: date}
}
