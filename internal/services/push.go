package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/mandala-api/internal/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// sendTimeout bounds one FCM call.
const sendTimeout = 10 * time.Second

// messageSender is the part of the FCM client PushService needs.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushService sends celebration push notifications via Firebase Cloud Messaging
type PushService struct {
	client messageSender
	topic  string
	log    logrus.FieldLogger
}

// NewPush initializes the Firebase push notification service.
// Returns a disabled service if no service account is configured (dev mode)
// or Firebase cannot be initialized.
func NewPush(ctx context.Context, serviceAccountPath, topic string, log logrus.FieldLogger) *PushService {
	if serviceAccountPath == "" {
		log.Info("FCM: No service account configured, push notifications disabled")
		return &PushService{topic: topic, log: log}
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.WithError(err).Warn("FCM: Failed to initialize Firebase app")
		return &PushService{topic: topic, log: log}
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		log.WithError(err).Warn("FCM: Failed to get messaging client")
		return &PushService{topic: topic, log: log}
	}

	log.WithField("topic", topic).Info("FCM: Push notifications enabled")
	return &PushService{client: client, topic: topic, log: log}
}

// Enabled reports whether pushes will actually be sent.
func (p *PushService) Enabled() bool {
	return p.client != nil
}

// Celebrate pushes a celebration to the configured topic.
// No-op if push is not configured.
func (p *PushService) Celebrate(ctx context.Context, c models.Celebration) error {
	if p.client == nil {
		return nil
	}

	title := c.GoalTitle
	if title == "" {
		title = "A goal"
	}
	msg := &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title: "Goal achieved!",
			Body:  title + " reached 100%",
		},
		Data: map[string]string{
			"type":    "celebration",
			"nodeId":  string(c.NodeID),
			"tier":    string(c.Tier),
			"percent": strconv.Itoa(c.Percent),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("FCM: send %s: %w", c.NodeID, err)
	}
	return nil
}
