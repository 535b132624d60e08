package notification

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"otc-signal-bot/internal/logging"
)

// FCMConfig holds Firebase Cloud Messaging configuration
type FCMConfig struct {
	Enabled         bool   `json:"enabled"`
	CredentialsFile string `json:"credentials_file"`
	CredentialsJSON string `json:"-"`
	Topic           string `json:"topic"`
	ChannelID       string `json:"channel_id"`
}

// messageSender is the part of *messaging.Client the notifier uses
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes signals to a Firebase topic
type FCMNotifier struct {
	sender    messageSender
	topic     string
	channelID string
	logger    *logging.Logger
}

// NewFCMNotifier initializes the Firebase app and messaging client
func NewFCMNotifier(ctx context.Context, config FCMConfig) (*FCMNotifier, error) {
	if !config.Enabled {
		return newFCMNotifier(nil, config), nil
	}
	if config.Topic == "" {
		return nil, errors.New("fcm topic is required")
	}

	var opt option.ClientOption
	switch {
	case config.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(config.CredentialsJSON))
	case config.CredentialsFile != "":
		opt = option.WithCredentialsFile(config.CredentialsFile)
	default:
		return nil, errors.New("no firebase credentials configured")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	n := newFCMNotifier(client, config)
	n.logger.Info("Firebase Cloud Messaging initialized", "topic", config.Topic)
	return n, nil
}

func newFCMNotifier(sender messageSender, config FCMConfig) *FCMNotifier {
	if config.ChannelID == "" {
		config.ChannelID = "otc_signals"
	}
	return &FCMNotifier{
		sender:    sender,
		topic:     config.Topic,
		channelID: config.ChannelID,
		logger:    logging.WithComponent("fcm"),
	}
}

func (f *FCMNotifier) Name() string {
	return "fcm"
}

func (f *FCMNotifier) IsEnabled() bool {
	return f.sender != nil
}

func (f *FCMNotifier) Send(ctx context.Context, notification *Notification) error {
	if f.sender == nil {
		return nil
	}

	data := map[string]string{"type": string(notification.Type)}
	for k, v := range notification.Extra {
		data[k] = v
	}

	message := &messaging.Message{
		Topic: f.topic,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: f.channelID,
				Priority:  messaging.PriorityHigh,
			},
		},
	}

	id, err := f.sender.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	f.logger.Debug("push sent", "message_id", id, "topic", f.topic)
	return nil
}
