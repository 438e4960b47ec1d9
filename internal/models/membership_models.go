package models

import "time"

// Membership is the authoritative record issued from an approved booking
// or created through the direct registration path.
type Membership struct {
	ID           string `json:"id" db:"id"`
	MembershipID string `json:"membershipId" db:"membership_id"`
	Applicant
	MembershipType        string     `json:"membershipType" db:"membership_type"`
	MembershipFee         int        `json:"membershipFee" db:"membership_fee"`
	PaymentMethod         string     `json:"paymentMethod" db:"payment_method"`
	PaymentStatus         string     `json:"paymentStatus" db:"payment_status"`
	TransactionID         string     `json:"transactionId" db:"transaction_id"`
	PaymentScreenshot     string     `json:"paymentScreenshot" db:"payment_screenshot"`
	IssueDate             *time.Time `json:"issueDate,omitempty" db:"issue_date"`
	ExpiryDate            *time.Time `json:"expiryDate,omitempty" db:"expiry_date"`
	Active                bool       `json:"active" db:"active"`
	IsAdminApproved       bool       `json:"isAdminApproved" db:"is_admin_approved"`
	ApprovedBy            *string    `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt            *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	AdminRemarks          string     `json:"adminRemarks" db:"admin_remarks"`
	PaymentVerificationID *string    `json:"paymentVerificationId,omitempty" db:"payment_verification_id"`
	BookingID             *string    `json:"bookingId,omitempty" db:"booking_id"`
	UserID                *string    `json:"userId,omitempty" db:"user_id"`
	CreatedAt             time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time  `json:"updatedAt" db:"updated_at"`
}

// Viewable reports whether the membership may be shown outside the admin surface.
func (m *Membership) Viewable() bool {
	return m.IsAdminApproved && m.Active
}

// MembershipFilters narrows admin membership listings.
type MembershipFilters struct {
	Active         *bool
	Approved       *bool
	MembershipType *string
}

// MembershipStats aggregates membership counts.
type MembershipStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Approved int            `json:"approved"`
	Pending  int            `json:"pending"`
	ByType   map[string]int `json:"byType"`
}

// TypeCount is one row of a grouped count query.
type TypeCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}
