package amqp

import (
	"encoding/json"
	"time"
)

// RecordExportMessage asks the worker to mirror one record to the sheets
// exporter. It carries only the id; the worker fetches the full record
// from the database.
type RecordExportMessage struct {
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordExportMessage(recordID string) *RecordExportMessage {
	return &RecordExportMessage{
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

func (m *RecordExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordExportMessageFromJSON(data []byte) (*RecordExportMessage, error) {
	var msg RecordExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DiagnosticMessage carries the raw payload captured from a failed parse
// to the operator-visible diagnostics queue.
type DiagnosticMessage struct {
	Prompt    string    `json:"prompt"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDiagnosticMessage(prompt, body string) *DiagnosticMessage {
	return &DiagnosticMessage{
		Prompt:    prompt,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m *DiagnosticMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DiagnosticMessageFromJSON(data []byte) (*DiagnosticMessage, error) {
	var msg DiagnosticMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
