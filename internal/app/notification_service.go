// internal/app/notification_service.go
package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	domainTelegram "savings_circle_bot/internal/domain/telegram"
)

// NotificationService delivers member notifications through the Telegram client.
// Member ids are Telegram user ids; ids that are not numeric cannot be reached by chat
// and are only logged.
type NotificationService struct {
	telegramClient domainTelegram.Client
	logger         *logrus.Entry
}

func NewNotificationService(tc domainTelegram.Client, logger *logrus.Entry) *NotificationService {
	return &NotificationService{telegramClient: tc, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, userID string, kind NotificationKind, message string, communityID *uuid.UUID) error {
	fields := logrus.Fields{"user_id": userID, "kind": kind}
	if communityID != nil {
		fields["community_id"] = *communityID
	}

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		s.logger.WithFields(fields).Warn("Member id is not a Telegram id, notification not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.telegramClient.SendMessage(chatID, message, &telebot.SendOptions{ParseMode: telebot.ModeDefault})
	if err != nil {
		return fmt.Errorf("sending %s notification to %d: %w", kind, chatID, err)
	}
	s.logger.WithFields(fields).Debug("Notification sent")
	return nil
}

// LogNotifier writes notifications to the log. Used when no bot token is configured.
type LogNotifier struct {
	Log *logrus.Entry
}

func (n LogNotifier) Notify(_ context.Context, userID string, kind NotificationKind, message string, communityID *uuid.UUID) error {
	entry := n.Log.WithFields(logrus.Fields{"user_id": userID, "kind": kind})
	if communityID != nil {
		entry = entry.WithField("community_id", *communityID)
	}
	entry.Info(message)
	return nil
}
