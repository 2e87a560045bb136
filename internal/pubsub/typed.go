package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Event[T] wraps a topic name and provides type-safe publishing and decoding.
type Event[T any] struct {
	topicName string
}

// TopicInfo describes a topic defined with NewEvent.
type TopicInfo struct {
	Name        string
	Module      string
	Description string
	TypeName    string
	Fields      []string
}

var catalog = struct {
	mu     sync.RWMutex
	topics map[string]TopicInfo
}{topics: make(map[string]TopicInfo)}

// NewEvent creates a typed event and records it in the topic catalog.
// The payload fields listed in the catalog come from the json tags of T.
// Defining the same topic twice panics; events are package-level values.
func NewEvent[T any](name string, description string) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make([]string, 0)
	typeName := ""
	if t != nil {
		typeName = t.String()
		if t.Kind() == reflect.Struct {
			for i := 0; i < t.NumField(); i++ {
				tag := t.Field(i).Tag.Get("json")
				if tag == "" || tag == "-" {
					continue
				}
				fields = append(fields, strings.Split(tag, ",")[0])
			}
		}
	}

	module, _, _ := strings.Cut(name, ".")

	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if _, exists := catalog.topics[name]; exists {
		panic(fmt.Sprintf("pubsub: topic already defined: %s", name))
	}
	catalog.topics[name] = TopicInfo{
		Name:        name,
		Module:      module,
		Description: description,
		TypeName:    typeName,
		Fields:      fields,
	}

	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Topics returns every defined topic sorted by name.
func Topics() []TopicInfo {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	out := make([]TopicInfo, 0, len(catalog.topics))
	for _, info := range catalog.topics {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], connectionID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:        event.Name(),
		ConnectionID: connectionID,
		Payload:      data,
	})
}

// Decode unmarshals the payload of msg as the event's type.
func Decode[T any](event Event[T], msg Message) (T, error) {
	var payload T
	if msg.Topic != event.Name() {
		return payload, fmt.Errorf("pubsub: message topic %q is not %q", msg.Topic, event.Name())
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("pubsub: decode %s: %w", msg.Topic, err)
	}
	return payload, nil
}
