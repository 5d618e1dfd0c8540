package notifications

var (
	bookingConfirmedMsg = "Your booking #%s is confirmed from %s to %s"
	bookingCancelledMsg = "Booking #%s has been cancelled"
	bookingCompletedMsg = "Booking #%s has been completed, funds released to you"
	disputeOpenedMsg    = "A dispute over %.2f %s has been opened on booking #%s"
	disputeResolvedMsg  = "The dispute on booking #%s was resolved as %s"
)

var (
	bookingConfirmedTitle = "Booking Confirmed"
	bookingCancelledTitle = "Booking Cancelled"
	bookingCompletedTitle = "Booking Completed"
	disputeOpenedTitle    = "Dispute Opened"
	disputeResolvedTitle  = "Dispute Resolved"
)
