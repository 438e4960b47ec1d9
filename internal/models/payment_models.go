package models

import "time"

// VerificationStatus is the decision state of a payment proof.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// IsValidVerificationStatus checks a raw status value.
func IsValidVerificationStatus(status string) bool {
	switch VerificationStatus(status) {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	default:
		return false
	}
}

// PaymentVerification is a payment claim against one membership.
type PaymentVerification struct {
	ID                     string             `json:"id" db:"id"`
	MembershipRef          string             `json:"membershipRef" db:"membership_ref"`
	UserID                 *string            `json:"userId,omitempty" db:"user_id"`
	Email                  string             `json:"email" db:"email"`
	FirstName              string             `json:"firstName" db:"first_name"`
	LastName               string             `json:"lastName" db:"last_name"`
	MembershipType         string             `json:"membershipType" db:"membership_type"`
	Amount                 int                `json:"amount" db:"amount"`
	PaymentMethod          string             `json:"paymentMethod" db:"payment_method"`
	TransactionID          string             `json:"transactionId" db:"transaction_id"`
	PaymentScreenshot      string             `json:"paymentScreenshot" db:"payment_screenshot"`
	Remarks                string             `json:"remarks" db:"remarks"`
	VerificationStatus     VerificationStatus `json:"verificationStatus" db:"verification_status"`
	VerifiedBy             *string            `json:"verifiedBy,omitempty" db:"verified_by"`
	VerifiedAt             *time.Time         `json:"verifiedAt,omitempty" db:"verified_at"`
	AdminRemarks           string             `json:"adminRemarks" db:"admin_remarks"`
	IsUpgrade              bool               `json:"isUpgrade" db:"is_upgrade"`
	PreviousMembershipType string             `json:"previousMembershipType" db:"previous_membership_type"`
	SubmittedAt            time.Time          `json:"submittedAt" db:"submitted_at"`
	UpdatedAt              time.Time          `json:"updatedAt" db:"updated_at"`
}

// VerificationFilters narrows verification listings.
type VerificationFilters struct {
	Status    *VerificationStatus
	IsUpgrade *bool
}

// VerificationSummary is the member-facing view of the latest payment proof.
type VerificationSummary struct {
	HasVerification bool               `json:"hasVerification"`
	ID              string             `json:"id,omitempty"`
	Status          VerificationStatus `json:"status,omitempty"`
	Amount          int                `json:"amount,omitempty"`
	PaymentMethod   string             `json:"paymentMethod,omitempty"`
	SubmittedAt     *time.Time         `json:"submittedAt,omitempty"`
	VerifiedAt      *time.Time         `json:"verifiedAt,omitempty"`
	AdminRemarks    string             `json:"adminRemarks,omitempty"`
	IsUpgrade       bool               `json:"isUpgrade"`
}
