package model

import "encoding/json"

type MessageType string

const (
	MessageTypeRegister     MessageType = "register"
	MessageTypeRegistered   MessageType = "registered"
	MessageTypeUnregister   MessageType = "unregister"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypePrintReceipt MessageType = "print_receipt"
	MessageTypeOpenDrawer   MessageType = "open_drawer"
	MessageTypePrinted      MessageType = "printed"
	MessageTypePrintFailed  MessageType = "print_failed"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type     MessageType     `json:"type"`
	AgentKey string          `json:"agent_key,omitempty"`
	JobID    string          `json:"job_id,omitempty"`
	Printer  string          `json:"printer,omitempty"`
	Job      json.RawMessage `json:"job,omitempty"` // Keep raw, decoded into ReceiptJob on demand
	Error    string          `json:"error,omitempty"`
}
