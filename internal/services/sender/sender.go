// Package sender consumes notification messages from the broker and
// delivers them as e-mail.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/smtp"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

// Service turns queue messages into outbound mail.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New creates the sender service.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleTrialNotice is the handler for the trial notification queue.
func (s *Service) HandleTrialNotice(body []byte) error {
	const op = "sender.HandleTrialNotice"

	var notice models.TrialNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		// A malformed message will never parse on redelivery either,
		// so log and drop it.
		s.log.Error("malformed trial notice", sl.Err(err))
		return nil
	}

	subject, text := composeTrialMail(notice)
	if err := s.send(notice.Email, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("trial notice sent",
		slog.String("email", notice.Email),
		slog.String("milestone", notice.Milestone))
	return nil
}

// HandleExpiryNotice is the handler for the expiry notification queue.
func (s *Service) HandleExpiryNotice(body []byte) error {
	const op = "sender.HandleExpiryNotice"

	var notice models.ExpiryNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("malformed expiry notice", sl.Err(err))
		return nil
	}

	subject, text := composeExpiryMail(notice)
	if err := s.send(notice.Email, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("expiry notice sent", slog.String("email", notice.Email))
	return nil
}

func composeTrialMail(notice models.TrialNotice) (subject, text string) {
	end := notice.TrialEndDate.Format("2 January 2006")
	switch notice.Milestone {
	case "3day":
		subject = "Your free trial ends in 3 days"
		text = fmt.Sprintf(
			"Hi %s,\n\nYour free trial ends on %s. Pick a plan now to keep uninterrupted access to patent search.\n",
			notice.Username, end)
	case "1day":
		subject = "Last day of your free trial"
		text = fmt.Sprintf(
			"Hi %s,\n\nYour free trial ends tomorrow, on %s. Subscribe today to keep your saved searches and lists.\n",
			notice.Username, end)
	default:
		subject = "Your free trial has ended"
		text = fmt.Sprintf(
			"Hi %s,\n\nYour free trial ended on %s. Subscribe to restore access to your account.\n",
			notice.Username, end)
	}
	return subject, text
}

func composeExpiryMail(notice models.ExpiryNotice) (subject, text string) {
	subject = "Your subscription has expired"
	text = fmt.Sprintf(
		"Hi %s,\n\nYour %s subscription expired on %s. Renew it to regain access to patent search.\n",
		notice.Username, notice.Plan, notice.EndDate.Format("2 January 2006"))
	return subject, text
}

func (s *Service) send(to, subject, text string) error {
	const op = "sender.send"

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var msg strings.Builder
	msg.WriteString("From: " + s.transport.GetSMTPUser() + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(text)

	if _, err := w.Write([]byte(msg.String())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return client.Quit()
}
