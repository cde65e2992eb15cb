package chat

import (
	"context"
	"strings"
)

type Responder interface {
	Reply(ctx context.Context, user, text string) string
}

type rule struct {
	keywords []string
	reply    string
}

// Keywords answers with the first rule whose keyword appears in the message.
type Keywords struct {
	rules    []rule
	fallback string
}

func NewKeywords() *Keywords {
	return &Keywords{
		rules: []rule{
			{
				keywords: []string{"quote", "cotiz", "price", "rate"},
				reply:    "You can review your quotes under Quotes. Use Load more to see older ones, or Refresh to pull the latest from our system.",
			},
			{
				keywords: []string{"track", "rastre", "awb", "container", "where is"},
				reply:    "To follow a shipment open Tracking and add its AWB or container number. Air waybills have 11 digits.",
			},
			{
				keywords: []string{"document", "documento", "invoice", "bill of lading", "upload"},
				reply:    "Shipment documents are attached to each ocean shipment. Files up to 5 MB can be uploaded there.",
			},
			{
				keywords: []string{"contact", "contacto", "agent", "human", "phone", "email"},
				reply:    "Your account executive can be reached from the Executives page. We answer on business days.",
			},
			{
				keywords: []string{"hello", "hola", "hi ", "good morning"},
				reply:    "Hello! Ask me about quotes, tracking, documents or how to contact us.",
			},
		},
		fallback: "Sorry, I did not get that. I can help with quotes, tracking, documents or contact details.",
	}
}

func (k *Keywords) Reply(_ context.Context, _ string, text string) string {
	msg := " " + strings.ToLower(strings.TrimSpace(text)) + " "
	for _, r := range k.rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.reply
			}
		}
	}
	return k.fallback
}
