package notifications

import (
	"context"
	"log"

	"firebase.google.com/go/v4/messaging"
)

// PushNotification sends a push message to a device token. Users without a
// registered token are skipped quietly.
func (n *notifiable) PushNotification(recipientToken, title, message string) error {
	if recipientToken == "" {
		return nil
	}

	ctx := context.Background()
	client, err := n.app.Messaging(ctx)
	if err != nil {
		return err
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Token: recipientToken,
	}

	response, err := client.Send(ctx, msg)
	if err != nil {
		return err
	}

	log.Printf("push_notification: delivered %v", response)
	return nil
}
