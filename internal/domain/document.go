package domain

import "time"

type Document struct {
	ID          string    `json:"id"`
	ShipmentID  string    `json:"shipmentId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
