package bus

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DLQPayload captures enough context to replay or inspect a message that
// could not be decoded or handled.
type DLQPayload struct {
	Topic       string    `json:"topic"`
	Partition   int32     `json:"partition"`
	Offset      int64     `json:"offset"`
	Timestamp   time.Time `json:"timestamp"`
	ValueBase64 string    `json:"value_base64"`
	Error       string    `json:"error"`
	Consumer    string    `json:"consumer"`
}

// EncodeDLQRecord serializes a failed record into a DLQ-safe payload.
func EncodeDLQRecord(topic string, partition int32, offset int64, value []byte, cause error, consumer string) ([]byte, error) {
	payload := DLQPayload{
		Topic:       topic,
		Partition:   partition,
		Offset:      offset,
		Timestamp:   time.Now().UTC(),
		ValueBase64: base64.StdEncoding.EncodeToString(value),
		Consumer:    consumer,
	}
	if cause != nil {
		payload.Error = cause.Error()
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal dlq payload: %w", err)
	}
	return b, nil
}
