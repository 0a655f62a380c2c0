package service

import "context"

// AlertNotifier delivers security alerts to push subscribers of a topic.
type AlertNotifier interface {
	SendTopicAlert(ctx context.Context, topic, title, body string, data map[string]string) error
}
