// Package mailer is the outbound email collaborator of the lifecycle
// engine. It owns transport only; the engine owns the notification
// audit trail.
package mailer

import "time"

// Kind tags an outbound message and doubles as the notification type
// written by the engine.
type Kind string

const (
	KindInvitationSent     Kind = "invitation_sent"
	KindApproved           Kind = "approved"
	KindRejected           Kind = "rejected"
	KindCorrections        Kind = "corrections_requested"
	KindExpirationReminder Kind = "expiration_reminder"
)

// Data carries the template fields. Unused fields are left zero per
// kind.
type Data struct {
	OrganizationName string
	ContactName      string
	InvitationURL    string
	LoginURL         string
	TempPassword     string
	Message          string
	CorrectionsNotes string
	RejectedReason   string
	ExpiresAt        time.Time
	DaysLeft         int
}

// Sender submits one message to the transport. It never fails loudly:
// a delivery problem is logged and reported as false, and the caller
// decides what that means. The engine treats false as a delivery gap,
// never as a transition failure.
type Sender interface {
	Send(kind Kind, recipient string, data Data) bool
}
