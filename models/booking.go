package models

// Booking / companion statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Payment sub-states
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRejected = "rejected"
	PaymentStatusRefunded = "refunded"
)

// Payment methods. Wallet methods require organizer verification of an
// uploaded proof; cash is reconciled on-site; free skips payment entirely.
const (
	PaymentMethodWalletA = "wallet_a"
	PaymentMethodWalletB = "wallet_b"
	PaymentMethodCash    = "cash"
	PaymentMethodFree    = "free"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodWalletA, PaymentMethodWalletB, PaymentMethodCash, PaymentMethodFree:
		return true
	}
	return false
}

// PaymentMethodRequiresVerification reports whether a booking with this
// method starts pending until the organizer approves it.
func PaymentMethodRequiresVerification(m string) bool {
	return m == PaymentMethodWalletA || m == PaymentMethodWalletB || m == PaymentMethodCash
}

// Booking binds one user to one event (optionally a distance tier), plus
// zero or more companions sharing its payment. Bookings are never deleted;
// the status columns model the whole lifecycle.
type Booking struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	EventID        string  `json:"event_id" gorm:"index;not null"`
	ExternalUserID string  `json:"external_user_id" gorm:"index;not null"`
	DistanceTierID *string `json:"distance_tier_id,omitempty" gorm:"index"`

	Status        string `json:"status" gorm:"type:varchar(16);default:'pending'"`
	PaymentStatus string `json:"payment_status" gorm:"type:varchar(16);default:'pending'"`
	PaymentMethod string `json:"payment_method" gorm:"type:varchar(16);not null"`
	ProofURL      string `json:"proof_url,omitempty"`

	// ScanToken is nil until the principal becomes attendance-eligible
	// (immediately for cash/free, on approval for wallet methods).
	ScanToken *string `json:"scan_token,omitempty"`

	// ParticipantCancelled records the owner withdrawing their own
	// attendance without voiding companions. It does not release the
	// owner's capacity slot.
	ParticipantCancelled bool `json:"participant_cancelled" gorm:"default:false"`

	Event      Event       `json:"event,omitempty" gorm:"foreignKey:EventID"`
	Companions []Companion `json:"companions,omitempty" gorm:"foreignKey:BookingID"`

	Timestamps
}

// Companion is a non-account-holding attendee attached to a booking. It
// has no payment record of its own: token eligibility and capacity
// consumption derive from its own status AND the parent booking's
// payment state.
type Companion struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	BookingID      string  `json:"booking_id" gorm:"index;not null"`
	Name           string  `json:"name" gorm:"not null"`
	Phone          string  `json:"phone,omitempty"`
	DistanceTierID *string `json:"distance_tier_id,omitempty" gorm:"index"`

	Status    string  `json:"status" gorm:"type:varchar(16);default:'pending'"`
	ScanToken *string `json:"scan_token,omitempty"`

	Timestamps
}
