package models

import (
	"time"

	"github.com/google/uuid"
)

const MaxConnectionMessageLength = 500

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusRejected ConnectionStatus = "rejected"
)

type ConnectionRequest struct {
	ID          uuid.UUID        `json:"id"`
	SenderID    uuid.UUID        `json:"sender_id"`
	ReceiverID  uuid.UUID        `json:"receiver_id"`
	Status      ConnectionStatus `json:"status"`
	Message     *string          `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

// ConnectionRequestWithProfile pairs a request with the profile on the other end.
type ConnectionRequestWithProfile struct {
	ConnectionRequest
	Other ProfileSummary `json:"other"`
}

type Connection struct {
	RequestID   uuid.UUID      `json:"request_id"`
	Profile     ProfileSummary `json:"profile"`
	ConnectedAt time.Time      `json:"connected_at"`
}

// ConnectionState describes the relationship between the caller and another profile.
type ConnectionState string

const (
	ConnectionStateNone            ConnectionState = "none"
	ConnectionStatePendingOutgoing ConnectionState = "pending_outgoing"
	ConnectionStatePendingIncoming ConnectionState = "pending_incoming"
	ConnectionStateConnected       ConnectionState = "connected"
	ConnectionStateSelf            ConnectionState = "self"
)

type ConnectionStatusResult struct {
	State     ConnectionState `json:"state"`
	RequestID *uuid.UUID      `json:"request_id,omitempty"`
}

type ConnectionInvite struct {
	ID         uuid.UUID  `json:"id"`
	InviterID  uuid.UUID  `json:"inviter_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
