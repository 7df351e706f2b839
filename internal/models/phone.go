package models

import "time"

// PhoneStatus is the lifecycle state of a phone message. Responded is
// terminal: no further transition is defined.
type PhoneStatus string

const (
	PhoneNew       PhoneStatus = "new"
	PhoneResponded PhoneStatus = "responded"
)

// Direction is the fixed sender-to-recipient role pairing of a phone
// message. It never changes after creation.
type Direction string

const (
	SecretaryToDoctor Direction = "secretary_to_doctor"
	DoctorToSecretary Direction = "doctor_to_secretary"
)

// Recipient returns the role that may respond to a message with this
// direction.
func (d Direction) Recipient() Role {
	if d == SecretaryToDoctor {
		return RoleDoctor
	}
	return RoleSecretary
}

// Sender returns the role that created a message with this direction.
func (d Direction) Sender() Role {
	if d == SecretaryToDoctor {
		return RoleSecretary
	}
	return RoleDoctor
}

// Priority of a phone message.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// PhoneMessage is a request/response work item for a phone call taken by
// one role on behalf of the other. Unlike chat messages it is not part of
// a live log; the list is refetched wholesale on change notifications.
type PhoneMessage struct {
	ID              string      `json:"id"`
	Status          PhoneStatus `json:"status"`
	Direction       Direction   `json:"direction"`
	Priority        Priority    `json:"priority"`
	PatientRef      string      `json:"patient_ref,omitempty"` // required iff secretary_to_doctor
	MessageContent  string      `json:"message_content"`
	ResponseContent string      `json:"response_content,omitempty"` // non-empty iff responded
	RespondedBy     string      `json:"responded_by,omitempty"`
	CallDate        string      `json:"call_date"` // creation-time snapshot, immutable
	CallTime        string      `json:"call_time"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
