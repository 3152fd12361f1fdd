package models

import "gorm.io/gorm"

// SMS directions
const (
	SMSDirectionInbound  = "inbound"
	SMSDirectionOutbound = "outbound"
)

// SMS delivery status values recorded locally
const (
	SMSStatusReceived = "received"
	SMSStatusSent     = "sent"
	SMSStatusFailed   = "failed"
)

// SMSLog records every text that enters or leaves the system.
// Inbound rows carry the provider's MessageSid, which is unique and
// doubles as the duplicate-delivery guard for webhooks.
type SMSLog struct {
	gorm.Model

	MessageSID string `json:"message_sid" gorm:"column:message_sid;size:64"`
	Direction  string `json:"direction" gorm:"size:16;index"`
	Phone      string `json:"phone" gorm:"size:32;index"`
	Body       string `json:"body"`
	Status     string `json:"status" gorm:"size:16"`
	Error      string `json:"error,omitempty"`
}

// TableName overrides the default table name
func (SMSLog) TableName() string { return "sms_logs" }
