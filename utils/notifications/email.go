package notifications

import (
	"parkhive-bend/utils"
)

// BookingEmailData represents the booking lifecycle email notification data
type BookingEmailData struct {
	Name      string
	BookingID string
	SpotID    string
	Start     string
	End       string
	Amount    float64
	Currency  string
}

// DisputeEmailData ...
type DisputeEmailData struct {
	Name      string
	BookingID string
	Amount    float64
	Currency  string
	Decision  string
	Notes     string
}

// GenericEmailData ...
type GenericEmailData struct {
	Formatted bool
	Content   string
}

// SendBookingConfirmedMail ...
func SendBookingConfirmedMail(to string, data BookingEmailData) error {
	subject := "Your parking spot is booked"
	err := send(to, subject, "booking_confirmed.html", data)
	return err
}

// SendBookingCancelledMail ...
func SendBookingCancelledMail(to string, data BookingEmailData) error {
	subject := "Booking cancelled"
	err := send(to, subject, "booking_cancelled.html", data)

	return err
}

// SendBookingCompletedMail ...
func SendBookingCompletedMail(to string, data BookingEmailData) error {
	subject := "Booking completed"
	err := send(to, subject, "booking_completed.html", data)

	return err
}

// SendDisputeOpenedMail ...
func SendDisputeOpenedMail(to string, data DisputeEmailData) error {
	subject := "A dispute was opened on your booking"
	return send(to, subject, "dispute_opened.html", data)
}

// SendDisputeResolvedMail ...
func SendDisputeResolvedMail(to string, data DisputeEmailData) error {
	subject := "Your dispute has been resolved"
	return send(to, subject, "dispute_resolved.html", data)
}

// SendGenericMail ...
func SendGenericMail(to, subject string, data GenericEmailData) error {
	return send(to, subject, "generic.html", data)
}

func send(to, subject, temp string, data interface{}) error {
	payload := utils.EmailData{
		Title:       subject,
		ContentData: data,
		Template:    temp,
		EmailTo:     to,
	}

	return utils.SendEmail(payload)
}
