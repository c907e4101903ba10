package types

import (
	"time"
)

// ReceptionDescriptor tells where and when a message was received.
type ReceptionDescriptor struct {
	SenderHost string
	Host       string
	Protocol   string // "ESMTP", or "ESMTPS" over implicit TLS
	Timestamp  time.Time
}
