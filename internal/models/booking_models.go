package models

import (
	"time"

	"github.com/lib/pq"
)

// BookingStatus is the review state of a membership application.
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusApproved BookingStatus = "approved"
	BookingStatusRejected BookingStatus = "rejected"
)

// IsValidBookingStatus checks if the provided status string is a valid BookingStatus.
func IsValidBookingStatus(status string) bool {
	switch BookingStatus(status) {
	case BookingStatusPending, BookingStatusApproved, BookingStatusRejected:
		return true
	default:
		return false
	}
}

// Payment methods accepted on applications and verifications.
const (
	PaymentMethodQRCode       = "qr-code"
	PaymentMethodBankTransfer = "bank-transfer"
	PaymentMethodUPI          = "upi"
)

// Payment states shared by bookings and memberships.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusVerified  = "verified"
	PaymentStatusCompleted = "completed"
	PaymentStatusRejected  = "rejected"
)

// Applicant is the personal and professional snapshot shared by bookings and memberships.
type Applicant struct {
	Title           string         `json:"title" db:"title"`
	FirstName       string         `json:"firstName" db:"first_name"`
	LastName        string         `json:"lastName" db:"last_name"`
	Email           string         `json:"email" db:"email"`
	Mobile          string         `json:"mobile" db:"mobile"`
	CurrentPosition string         `json:"currentPosition" db:"current_position"`
	Institute       string         `json:"institute" db:"institute"`
	Department      string         `json:"department" db:"department"`
	Organisation    string         `json:"organisation" db:"organisation"`
	Address         string         `json:"address" db:"address"`
	Town            string         `json:"town" db:"town"`
	Postcode        string         `json:"postcode" db:"postcode"`
	State           string         `json:"state" db:"state"`
	Country         string         `json:"country" db:"country"`
	Status          string         `json:"status" db:"status"`
	LinkedIn        string         `json:"linkedin" db:"linkedin"`
	Orcid           string         `json:"orcid" db:"orcid"`
	ResearchGate    string         `json:"researchGate" db:"research_gate"`
	Interests       pq.StringArray `json:"interests" db:"interests"`
	Experience      string         `json:"experience" db:"experience"`
	ProfilePhoto    string         `json:"profilePhoto" db:"profile_photo"`
}

// Booking is a submitted membership application awaiting an admin decision.
type Booking struct {
	ID string `json:"id" db:"id"`
	Applicant
	MembershipType    string        `json:"membershipType" db:"membership_type"`
	MembershipFee     int           `json:"membershipFee" db:"membership_fee"`
	PaymentMethod     string        `json:"paymentMethod" db:"payment_method"`
	PaymentStatus     string        `json:"paymentStatus" db:"payment_status"`
	TransactionID     string        `json:"transactionId" db:"transaction_id"`
	PaymentScreenshot string        `json:"paymentScreenshot" db:"payment_screenshot"`
	PaymentDate       *time.Time    `json:"paymentDate,omitempty" db:"payment_date"`
	BookingStatus     BookingStatus `json:"bookingStatus" db:"booking_status"`
	AdminRemarks      string        `json:"adminRemarks" db:"admin_remarks"`
	ApprovedBy        *string       `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt        *time.Time    `json:"approvedAt,omitempty" db:"approved_at"`
	RejectedReason    string        `json:"rejectedReason" db:"rejected_reason"`
	UserID            *string       `json:"userId,omitempty" db:"user_id"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}

// BookingFilters narrows booking listings.
type BookingFilters struct {
	Status *BookingStatus
}

// BookingStats holds application counts by state.
type BookingStats struct {
	Total    int `json:"total" db:"total"`
	Pending  int `json:"pending" db:"pending"`
	Approved int `json:"approved" db:"approved"`
	Rejected int `json:"rejected" db:"rejected"`
	Paid     int `json:"paid" db:"paid"`
}
