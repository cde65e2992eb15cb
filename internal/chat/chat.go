// Package chat backs the portal's chat widget: a per-user message history in
// the kv store and a bot that answers from keyword rules.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/kv"
)

const (
	historyPrefix  = "chatbot_history_"
	maxMessageLen  = 2000
	DefaultHistory = 50
)

type Service struct {
	store     kv.Store
	responder Responder
	cap       int
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	// mu serializes read-modify-write of histories on this instance.
	mu sync.Mutex
}

func NewService(store kv.Store, responder Responder, cfg config.Chat, logger *zap.Logger) *Service {
	if responder == nil {
		responder = NewKeywords()
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultHistory
	}
	return &Service{
		store:     store,
		responder: responder,
		cap:       cfg.HistoryCap,
		interval:  cfg.TypeInterval,
		now:       time.Now,
		logger:    logger,
	}
}

func historyKey(user string) string { return historyPrefix + user }

// History returns the user's messages, oldest first. An unreadable history
// counts as empty.
func (s *Service) History(ctx context.Context, user string) ([]domain.ChatMessage, error) {
	raw, err := s.store.Get(ctx, historyKey(user))
	if errors.Is(err, kv.ErrNotFound) {
		return []domain.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.logger.Warn("discarding unreadable chat history", zap.String("username", user), zap.Error(err))
		return []domain.ChatMessage{}, nil
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

func (s *Service) ClearHistory(ctx context.Context, user string) error {
	if err := s.store.Remove(ctx, historyKey(user)); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	return nil
}

// Send records the user's message and the bot's reply, keeping only the most
// recent messages, and returns the reply.
func (s *Service) Send(ctx context.Context, user, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: message is empty", domain.ErrInvalid)
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return domain.ChatMessage{}, fmt.Errorf("%w: message is longer than %d characters", domain.ErrInvalid, maxMessageLen)
	}

	reply := domain.ChatMessage{
		ID:   uuid.NewString(),
		Role: domain.ChatBot,
		Text: s.responder.Reply(ctx, user, text),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.History(ctx, user)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	now := s.now().UTC()
	reply.At = now
	msgs = append(msgs, domain.ChatMessage{ID: uuid.NewString(), Role: domain.ChatUser, Text: text, At: now}, reply)
	if len(msgs) > s.cap {
		msgs = msgs[len(msgs)-s.cap:]
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("encode chat history: %w", err)
	}
	if err := s.store.Set(ctx, historyKey(user), string(raw)); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("store chat history: %w", err)
	}
	s.logger.Debug("chat reply", zap.String("username", user), zap.Int("history", len(msgs)))
	return reply, nil
}

// Stream sends a message and renders the reply typewriter style.
func (s *Service) Stream(ctx context.Context, user, text string) (domain.ChatMessage, <-chan string, error) {
	reply, err := s.Send(ctx, user, text)
	if err != nil {
		return domain.ChatMessage{}, nil, err
	}
	return reply, Typewriter(ctx, reply.Text, s.interval), nil
}

// Typewriter emits growing prefixes of text, one rune more per frame, waiting
// interval between frames. The channel is closed after the full text or when
// ctx is done.
func Typewriter(ctx context.Context, text string, interval time.Duration) <-chan string {
	frames := make(chan string)
	go func() {
		defer close(frames)

		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}
		for i := range text {
			_, size := utf8.DecodeRuneInString(text[i:])
			if ticker != nil && i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			select {
			case <-ctx.Done():
				return
			case frames <- text[:i+size]:
			}
		}
	}()
	return frames
}
