package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"forum-service/internal/models"
	"forum-service/internal/observability"
	"forum-service/internal/repositories"
	"forum-service/internal/textutil"
	"forum-service/internal/workerpool"
)

// ErrCommandIgnored marks a well-formed command that had no effect, such as an
// edit by someone other than the author.
var ErrCommandIgnored = errors.New("command ignored")

// DropError explains why an inbound frame was discarded.
type DropError struct {
	Reason string
}

func (e *DropError) Error() string { return "frame dropped: " + e.Reason }

func drop(reason string) error { return &DropError{Reason: reason} }

// Command is a validated inbound command.
type Command struct {
	Type      string
	Body      string
	ParentID  *int
	MessageID int
	Value     int
}

type inboundFrame struct {
	Type      string          `json:"type"`
	Body      json.RawMessage `json:"body"`
	ParentID  json.RawMessage `json:"parent_id"`
	MessageID json.RawMessage `json:"message_id"`
	Value     json.RawMessage `json:"value"`
}

// ParseCommand validates a text frame. maxBody bounds the body in code points;
// longer bodies are truncated, not rejected. Every failure is a *DropError.
func ParseCommand(data []byte, maxBody int) (Command, error) {
	// encoding/json would silently substitute U+FFFD
	if !utf8.Valid(data) {
		return Command{}, drop("invalid_utf8")
	}
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Command{}, drop("invalid_json")
	}

	switch frame.Type {
	case models.CommandNewMessage:
		body, err := parseBody(frame.Body, maxBody)
		if err != nil {
			return Command{}, err
		}
		cmd := Command{Type: frame.Type, Body: body}
		if id, ok := parseID(frame.ParentID); ok {
			cmd.ParentID = &id
		}
		return cmd, nil

	case models.CommandReact:
		id, ok := parseID(frame.MessageID)
		if !ok {
			return Command{}, drop("invalid_message_id")
		}
		value, ok := parseReaction(frame.Value)
		if !ok {
			return Command{}, drop("invalid_value")
		}
		return Command{Type: frame.Type, MessageID: id, Value: value}, nil

	case models.CommandEditMessage:
		id, ok := parseID(frame.MessageID)
		if !ok {
			return Command{}, drop("invalid_message_id")
		}
		body, err := parseBody(frame.Body, maxBody)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: frame.Type, MessageID: id, Body: body}, nil

	default:
		return Command{}, drop("unknown_type")
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func parseBody(raw json.RawMessage, max int) (string, error) {
	var body string
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &body); err != nil {
			return "", drop("invalid_body")
		}
	}
	body = textutil.Clean(body, max)
	if body == "" {
		return "", drop("empty_body")
	}
	return body, nil
}

// parseID accepts an integral JSON number or a string holding a decimal
// integer.
func parseID(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		id, err := strconv.Atoi(strings.TrimSpace(s))
		return id, err == nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if id, err := strconv.Atoi(n.String()); err == nil {
		return id, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// parseReaction accepts only JSON numbers equal to 1 or -1.
func parseReaction(raw json.RawMessage) (int, bool) {
	if isNull(raw) || raw[0] == '"' {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	v := int(f)
	if float64(v) != f || !models.ValidReaction(v) {
		return 0, false
	}
	return v, true
}

// CommandProcessor applies commands to the store through the worker pool and
// turns the committed record into a room event.
type CommandProcessor struct {
	messages repositories.MessageRepository
	pool     *workerpool.Pool
}

// NewCommandProcessor constructs a CommandProcessor.
func NewCommandProcessor(messages repositories.MessageRepository, pool *workerpool.Pool) *CommandProcessor {
	return &CommandProcessor{messages: messages, pool: pool}
}

// Process runs cmd for userID in topicID. It returns the event to broadcast,
// or an error. Errors wrapping ErrCommandIgnored are silent no-ops; any other
// error is a store failure for this command only.
func (p *CommandProcessor) Process(ctx context.Context, topicID, userID int, cmd Command) (models.RoomEvent, error) {
	var (
		msg       models.Message
		eventType string
	)
	start := time.Now()
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		switch cmd.Type {
		case models.CommandNewMessage:
			eventType = models.EventMessage
			msg, err = p.messages.CreateMessage(ctx, topicID, cmd.ParentID, userID, cmd.Body)
			return err

		case models.CommandReact:
			eventType = models.EventReaction
			if err := p.inTopic(ctx, topicID, cmd.MessageID); err != nil {
				return err
			}
			// TODO: skip the broadcast when the stored value already equals cmd.Value
			msg, err = p.messages.SetReaction(ctx, cmd.MessageID, userID, cmd.Value)
			return err

		case models.CommandEditMessage:
			eventType = models.EventEdit
			if err := p.inTopic(ctx, topicID, cmd.MessageID); err != nil {
				return err
			}
			msg, err = p.messages.UpdateMessage(ctx, cmd.MessageID, userID, cmd.Body)
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return fmt.Errorf("%w: message %d not editable by user %d", ErrCommandIgnored, cmd.MessageID, userID)
			}
			return err

		default:
			return fmt.Errorf("%w: unknown command %q", ErrCommandIgnored, cmd.Type)
		}
	})
	observability.ObserveStoreCall(cmd.Type, time.Since(start))
	if err != nil {
		return models.RoomEvent{}, err
	}
	return models.RoomEvent{Type: eventType, Message: &msg}, nil
}

// inTopic rejects messages that are missing or belong to another topic.
// topic_id never changes after insert, so the check cannot go stale.
func (p *CommandProcessor) inTopic(ctx context.Context, topicID, messageID int) error {
	existing, err := p.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return fmt.Errorf("%w: message %d not found", ErrCommandIgnored, messageID)
	}
	if err != nil {
		return err
	}
	if existing.TopicID != topicID {
		return fmt.Errorf("%w: message %d belongs to topic %d", ErrCommandIgnored, messageID, existing.TopicID)
	}
	return nil
}
