package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"parkhive-bend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func cErr(tag string, err error) {
	if err != nil {
		log.Printf("%s: %v", tag, err)
		return
	}
}

// SendGenericNotification ...
func (n *notifiable) SendGenericNotification(userid, subject string, data GenericEmailData) {
	user, err := n.getUser(userid)
	cErr("rtv_user", err)

	err = SendGenericMail(user.Email, subject, data)
	cErr("err_send_generic_mail", err)

	if data.Formatted {
		return
	}

	err = n.PushNotification(user.FCMToken, subject, data.Content)
	cErr("err_send_generic_PN", err)
}

// SendBookingConfirmedNotification notifies both parties of a new confirmed
// booking
func (n *notifiable) SendBookingConfirmedNotification(booking models.Booking) {
	requester, err := n.getUser(booking.RequesterID.Hex())
	cErr("rtv_requester", err)

	owner, err := n.getUser(booking.OwnerID.Hex())
	cErr("rtv_owner", err)

	data := BookingEmailData{
		Name:      requester.Username,
		BookingID: booking.ID.Hex(),
		SpotID:    booking.ResourceID,
		Start:     booking.StartTime.Format(time.RFC822),
		End:       booking.EndTime.Format(time.RFC822),
		Amount:    booking.TotalPrice,
		Currency:  booking.Currency,
	}
	message := fmt.Sprintf(bookingConfirmedMsg, booking.ID.Hex(), data.Start, data.End)

	err = SendBookingConfirmedMail(requester.Email, data)
	cErr("err_send_booking_confirmed_mail", err)

	err = n.PushNotification(requester.FCMToken, bookingConfirmedTitle, message)
	cErr("err_booking_confirmed_PN", err)

	data.Name = owner.Username
	err = SendBookingConfirmedMail(owner.Email, data)
	cErr("err_send_booking_confirmed_mail", err)

	err = n.PushNotification(owner.FCMToken, bookingConfirmedTitle, message)
	cErr("err_booking_confirmed_PN", err)

	// store notification object
	n.persit(bookingConfirmedTitle, message, booking.ID.Hex(), booking.RequesterID.Hex(), models.APayment, models.BookingN)
	n.persit(bookingConfirmedTitle, message, booking.ID.Hex(), booking.OwnerID.Hex(), models.AInfo, models.BookingN)
}

// SendBookingCancelledNotification ...
func (n *notifiable) SendBookingCancelledNotification(booking models.Booking) {
	message := fmt.Sprintf(bookingCancelledMsg, booking.ID.Hex())

	for _, userid := range []string{booking.RequesterID.Hex(), booking.OwnerID.Hex()} {
		user, err := n.getUser(userid)
		cErr("rtv_user", err)

		data := BookingEmailData{
			Name:      user.Username,
			BookingID: booking.ID.Hex(),
			SpotID:    booking.ResourceID,
			Amount:    booking.TotalPrice,
			Currency:  booking.Currency,
		}
		err = SendBookingCancelledMail(user.Email, data)
		cErr("err_send_booking_cancelled_mail", err)

		err = n.PushNotification(user.FCMToken, bookingCancelledTitle, message)
		cErr("err_booking_cancelled_PN", err)

		n.persit(bookingCancelledTitle, message, booking.ID.Hex(), userid, models.AInfo, models.BookingN)
	}
}

// SendBookingCompletedNotification notifies the spot owner their payout has
// been released
func (n *notifiable) SendBookingCompletedNotification(booking models.Booking) {
	owner, err := n.getUser(booking.OwnerID.Hex())
	cErr("rtv_owner", err)

	data := BookingEmailData{
		Name:      owner.Username,
		BookingID: booking.ID.Hex(),
		SpotID:    booking.ResourceID,
		Amount:    booking.TotalPrice,
		Currency:  booking.Currency,
	}
	message := fmt.Sprintf(bookingCompletedMsg, booking.ID.Hex())

	err = SendBookingCompletedMail(owner.Email, data)
	cErr("err_send_booking_completed_mail", err)

	err = n.PushNotification(owner.FCMToken, bookingCompletedTitle, message)
	cErr("err_booking_completed_PN", err)

	// store notification object
	n.persit(bookingCompletedTitle, message, booking.ID.Hex(), booking.OwnerID.Hex(), models.ACompleted, models.BookingN)
}

// SendDisputeOpenedNotification notifies the party who did not raise the
// dispute
func (n *notifiable) SendDisputeOpenedNotification(dispute models.Dispute) {
	booking, err := n.getBooking(dispute.BookingID)
	if err != nil {
		cErr("rtv_booking", err)
		return
	}

	counterparty := booking.OwnerID
	if dispute.RaisedBy == booking.OwnerID {
		counterparty = booking.RequesterID
	}

	user, err := n.getUser(counterparty.Hex())
	cErr("rtv_counterparty", err)

	data := DisputeEmailData{
		Name:      user.Username,
		BookingID: booking.ID.Hex(),
		Amount:    dispute.AmountInQuestion,
		Currency:  booking.Currency,
	}
	message := fmt.Sprintf(disputeOpenedMsg, dispute.AmountInQuestion, booking.Currency, booking.ID.Hex())

	err = SendDisputeOpenedMail(user.Email, data)
	cErr("err_send_dispute_opened_mail", err)

	err = n.PushNotification(user.FCMToken, disputeOpenedTitle, message)
	cErr("err_dispute_opened_PN", err)

	// store notification object
	n.persit(disputeOpenedTitle, message, booking.ID.Hex(), counterparty.Hex(), models.AInfo, models.DisputeN)
}

// SendDisputeResolvedNotification ...
func (n *notifiable) SendDisputeResolvedNotification(dispute models.Dispute) {
	if dispute.Resolution == nil {
		return
	}

	booking, err := n.getBooking(dispute.BookingID)
	if err != nil {
		cErr("rtv_booking", err)
		return
	}

	message := fmt.Sprintf(disputeResolvedMsg, booking.ID.Hex(), dispute.Resolution.Decision)

	for _, userid := range []string{booking.RequesterID.Hex(), booking.OwnerID.Hex()} {
		user, err := n.getUser(userid)
		cErr("rtv_user", err)

		data := DisputeEmailData{
			Name:      user.Username,
			BookingID: booking.ID.Hex(),
			Amount:    dispute.Resolution.RefundAmount,
			Currency:  booking.Currency,
			Decision:  dispute.Resolution.Decision,
			Notes:     dispute.Resolution.Notes,
		}
		err = SendDisputeResolvedMail(user.Email, data)
		cErr("err_send_dispute_resolved_mail", err)

		err = n.PushNotification(user.FCMToken, disputeResolvedTitle, message)
		cErr("err_dispute_resolved_PN", err)

		n.persit(disputeResolvedTitle, message, booking.ID.Hex(), userid, models.AInfo, models.DisputeN)
	}
}

// private

func (n *notifiable) getUser(id string) (models.User, error) {
	var user models.User

	collection, ok := n.factoryDAO.Collections["user"]
	if !ok {
		return user, errors.New("User collection not retrieable from factoryDAO")
	}

	docID, _ := primitive.ObjectIDFromHex(id)
	err := collection.FindOne(context.Background(), bson.M{"_id": docID}).Decode(&user)

	return user, err
}

func (n *notifiable) getBooking(id primitive.ObjectID) (models.Booking, error) {
	var booking models.Booking

	collection, ok := n.factoryDAO.Collections["bookings"]
	if !ok {
		return booking, errors.New("Booking collection not retrieable from factoryDAO")
	}

	err := collection.FindOne(context.Background(), bson.M{"_id": id}).Decode(&booking)

	return booking, err
}

func (n *notifiable) persit(
	title,
	message,
	bookingID,
	userID string,
	action models.NotificationActionType,
	_type models.NotificationType,
) {

	pBookingID, _ := primitive.ObjectIDFromHex(bookingID)
	pUserID, _ := primitive.ObjectIDFromHex(userID)

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		Title:     title,
		BookingID: pBookingID,
		UserID:    pUserID,
		Action:    action,
		Type:      _type,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	err := n.factoryDAO.Insert(context.Background(), "notifications", notification)
	cErr("err_persist_notification", err)
}
