package models

import (
	"fmt"
	"io"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
)

type Message struct {
	Type               string                 `json:"type"`
	Record             map[string]interface{} `json:"record,omitempty"`
	Stream             string                 `json:"stream,omitempty"`
	TimeExtracted      string                 `json:"time_extracted,omitempty"`
	Schema             interface{}            `json:"schema,omitempty"`
	Value              interface{}            `json:"value,omitempty"`
	KeyProperties      []string               `json:"key_properties,omitempty"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
}

// MessageWriter writes Singer messages as JSON lines
type MessageWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewMessageWriter(out io.Writer) *MessageWriter {
	return &MessageWriter{out: out}
}

func (w *MessageWriter) WriteSchema(stream string, schema interface{}, keyProperties, bookmarkProperties []string) error {
	return w.write(Message{
		Type:               "SCHEMA",
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

func (w *MessageWriter) WriteRecord(stream string, extractedAt time.Time, record Record) error {
	return w.write(Message{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: FormatTimestamp(extractedAt),
	})
}

func (w *MessageWriter) WriteState(state *State) error {
	return w.write(Message{
		Type:  "STATE",
		Value: state,
	})
}

func (w *MessageWriter) write(message Message) error {
	messageJson, err := gojson.Marshal(message)
	if err != nil {
		return fmt.Errorf("error creating %s message: %w", message.Type, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(append(messageJson, '\n')); err != nil {
		return fmt.Errorf("error writing %s message: %w", message.Type, err)
	}
	return nil
}
