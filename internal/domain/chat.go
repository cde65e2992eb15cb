package domain

import "time"

type ChatRole string

const (
	ChatUser ChatRole = "user"
	ChatBot  ChatRole = "bot"
)

type ChatMessage struct {
	ID   string    `json:"id"`
	Role ChatRole  `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
