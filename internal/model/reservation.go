package model

import "time"

// Reservation represents a Reader's place in a Title's waiting line.
// Among waiting reservations for one title, CreatedOn defines FIFO
// priority; ties break on ID so ordering stays deterministic.
type Reservation struct {
	ID       string `json:"id"`
	TitleID  string `json:"title_id"`
	ReaderID string `json:"reader_id"`

	Status string `json:"status"`

	// CopyID is set when the reservation is promoted to ready_for_pickup
	// and names the copy earmarked for this reader. It is cleared again
	// when the reservation leaves that state.
	CopyID *string `json:"copy_id,omitempty"`

	// ExpiresOn is meaningful only while the reservation is
	// ready_for_pickup.
	ExpiresOn *time.Time `json:"expires_on,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Reservation status constants
const (
	ReservationStatusWaiting        = "waiting"
	ReservationStatusReadyForPickup = "ready_for_pickup"
	ReservationStatusFulfilled      = "fulfilled"
	ReservationStatusCancelled      = "cancelled"
	ReservationStatusExpired        = "expired"
)

// DefaultPickupWindowDays is how long a promoted reservation holds its
// earmarked copy before the expiry sweep releases it.
const DefaultPickupWindowDays = 3

// ValidReservationStatus reports whether s is a known reservation status.
func ValidReservationStatus(s string) bool {
	switch s {
	case ReservationStatusWaiting, ReservationStatusReadyForPickup,
		ReservationStatusFulfilled, ReservationStatusCancelled,
		ReservationStatusExpired:
		return true
	}
	return false
}
