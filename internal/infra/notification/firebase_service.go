// Package notification sends security alerts through Firebase Cloud Messaging.
package notification

import (
	"context"

	"warden/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// messagingClient is the slice of *messaging.Client the notifier needs.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type firebaseNotifier struct {
	client messagingClient
}

// NewFirebaseNotifier uses application default credentials when credentialsPath is empty.
func NewFirebaseNotifier(ctx context.Context, projectID, credentialsPath string) (service.AlertNotifier, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	var appCfg *firebase.Config
	if projectID != "" {
		appCfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	return &firebaseNotifier{client: client}, nil
}

// SendTopicAlert publishes one notification to every device subscribed to topic.
func (s *firebaseNotifier) SendTopicAlert(ctx context.Context, topic, title, body string, data map[string]string) error {
	if topic == "" {
		return errors.New("alert topic is required")
	}

	message := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return errors.Wrapf(err, "failed to send alert to topic %s", topic)
	}

	return nil
}

// IsRetryable reports whether a send failure is worth a redelivery.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	return messaging.IsUnavailable(err) || messaging.IsInternal(err) || messaging.IsQuotaExceeded(err)
}
