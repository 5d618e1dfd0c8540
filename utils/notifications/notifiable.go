package notifications

import (
	"context"
	"os"

	"parkhive-bend/dao"
	"parkhive-bend/events"
	"parkhive-bend/models"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Notifiable defines the functionality of a notification object
type Notifiable interface {
	// Dispatches a push notification to currently configured message server (FCM)
	PushNotification(recipientToken, title, message string) error
	SendBookingConfirmedNotification(booking models.Booking)
	SendBookingCancelledNotification(booking models.Booking)
	SendBookingCompletedNotification(booking models.Booking)
	SendDisputeOpenedNotification(dispute models.Dispute)
	SendDisputeResolvedNotification(dispute models.Dispute)
	SendGenericNotification(userid, subject string, data GenericEmailData)
}

type notifiable struct {
	app        *firebase.App
	factoryDAO *dao.FactoryDAO
}

// NewNotifiable returns a new Notifiable implementation with access to all
// notifiable objects (email, fcm)
func NewNotifiable(dao *dao.FactoryDAO) (Notifiable, error) {
	serviceAccountKeyPath := os.Getenv("SERVICE_ACCOUNT_KEY_PATH")
	opt := option.WithCredentialsFile(serviceAccountKeyPath)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, err
	}

	return &notifiable{app: app, factoryDAO: dao}, nil
}

// Attach subscribes the notification fan-out to engine state changes. The
// engine itself never sees this layer.
func Attach(bus *events.Bus, n Notifiable) {
	bus.Subscribe(events.BookingConfirmed, func(e events.Event) {
		if e.Booking != nil {
			n.SendBookingConfirmedNotification(*e.Booking)
		}
	})
	bus.Subscribe(events.BookingCancelled, func(e events.Event) {
		if e.Booking != nil {
			n.SendBookingCancelledNotification(*e.Booking)
		}
	})
	bus.Subscribe(events.BookingCompleted, func(e events.Event) {
		if e.Booking != nil {
			n.SendBookingCompletedNotification(*e.Booking)
		}
	})
	bus.Subscribe(events.DisputeOpened, func(e events.Event) {
		if e.Dispute != nil {
			n.SendDisputeOpenedNotification(*e.Dispute)
		}
	})
	bus.Subscribe(events.DisputeResolved, func(e events.Event) {
		if e.Dispute != nil {
			n.SendDisputeResolvedNotification(*e.Dispute)
		}
	})
}
