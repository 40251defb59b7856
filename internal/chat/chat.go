package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/metrics"
)

const (
	historySize = 200
	maxText     = 2000
)

var (
	ErrInvalidRoom = errors.New("invalid room name")
	ErrEmptyText   = errors.New("message text is empty")

	roomPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
)

// Message is one chat line.
type Message struct {
	ID     string    `json:"id"`
	Room   string    `json:"room"`
	Author string    `json:"author"`
	Email  string    `json:"email"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// Hub keeps room history in capped redis lists and fans out new messages
// with pub/sub.
type Hub struct {
	client *redis.Client
	rooms  map[string]struct{}
}

// NewHub serves the given rooms. With no rooms every well-formed name is
// accepted.
func NewHub(client *redis.Client, rooms []string) *Hub {
	h := &Hub{client: client}
	if len(rooms) > 0 {
		h.rooms = make(map[string]struct{}, len(rooms))
		for _, r := range rooms {
			if ValidRoom(r) {
				h.rooms[r] = struct{}{}
			}
		}
	}
	return h
}

// ValidRoom reports whether room is a usable room name.
func ValidRoom(room string) bool {
	return roomPattern.MatchString(room)
}

// Open reports whether the hub serves room.
func (h *Hub) Open(room string) bool {
	if !h.Open(room) {
		return false
	}
	if h.rooms == nil {
		return true
	}
	_, ok := h.rooms[room]
	return ok
}

func historyKey(room string) string { return "chat:" + room + ":history" }
func channelKey(room string) string { return "chat:" + room }

// Post stores msg in the room history and publishes it to subscribers.
func (h *Hub) Post(ctx context.Context, room string, msg Message) (Message, error) {
	if !h.Open(room) {
		return Message{}, ErrInvalidRoom
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return Message{}, ErrEmptyText
	}
	if r := []rune(msg.Text); len(r) > maxText {
		msg.Text = string(r[:maxText])
	}
	msg.ID = uuid.NewString()
	msg.Room = room
	msg.SentAt = time.Now().UTC()

	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}

	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, historyKey(room), payload)
	pipe.LTrim(ctx, historyKey(room), -historySize, -1)
	pipe.Publish(ctx, channelKey(room), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return Message{}, fmt.Errorf("failed to post chat message: %w", err)
	}

	metrics.ChatMessagesTotal.Inc()
	return msg, nil
}

// History returns up to limit of the latest messages, oldest first.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]Message, error) {
	if !h.Open(room) {
		return nil, ErrInvalidRoom
	}
	if limit <= 0 || limit > historySize {
		limit = historySize
	}

	raw, err := h.client.LRange(ctx, historyKey(room), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, s := range raw {
		var m Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logger.Debug.Printf("Skipping malformed chat entry in %s: %v", room, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Subscribe streams new messages of room until ctx is done or the returned
// stop function is called.
func (h *Hub) Subscribe(ctx context.Context, room string) (<-chan Message, func(), error) {
	if !h.Open(room) {
		return nil, nil, ErrInvalidRoom
	}
	sub := h.client.Subscribe(ctx, channelKey(room))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", room, err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		for m := range sub.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}
