package models

// StatusName identifies one of the closed set of invitation lifecycle
// states. States are compared by name, never by row id.
type StatusName string

const (
	StatusSent              StatusName = "sent"
	StatusPending           StatusName = "pending"
	StatusApproved          StatusName = "approved"
	StatusRejected          StatusName = "rejected"
	StatusCorrectionsNeeded StatusName = "corrections_needed"
)

// AllStatuses lists every seed row of the status registry, in seed order.
func AllStatuses() []StatusName {
	return []StatusName{
		StatusSent,
		StatusPending,
		StatusApproved,
		StatusRejected,
		StatusCorrectionsNeeded,
	}
}

// InvitationStatus is the reference row backing a StatusName.
type InvitationStatus struct {
	ID   uint       `gorm:"primarykey"`
	Name StatusName `gorm:"uniqueIndex;size:32;not null"`
}
