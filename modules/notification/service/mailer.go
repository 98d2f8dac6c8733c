package service

import (
	"context"
	"fmt"

	"funnel-api/core/config"
	"funnel-api/core/logger"
	"funnel-api/core/utils"
	aptEntity "funnel-api/modules/appointment/entity"
	leadEntity "funnel-api/modules/lead/entity"
)

// Notifier is what the scheduling engine and reminder sweep depend on.
type Notifier interface {
	SendConfirmation(ctx context.Context, lead *leadEntity.Lead, apt *aptEntity.Appointment) error
	SendReminder(ctx context.Context, lead *leadEntity.Lead, apt *aptEntity.Appointment) error
}

// MailerService sends funnel emails over SMTP. Sends are synchronous; callers
// that cannot afford the latency enqueue a task instead.
type MailerService struct {
	smtp config.SMTPConfig
}

func NewMailerService(smtp config.SMTPConfig) *MailerService {
	return &MailerService{smtp: smtp}
}

func (s *MailerService) emailConfig() utils.EmailConfig {
	return utils.EmailConfig{
		Host:     s.smtp.Host,
		Port:     s.smtp.Port,
		Username: s.smtp.Username,
		Password: s.smtp.Password,
		From:     s.smtp.From,
	}
}

func (s *MailerService) SendConfirmation(ctx context.Context, lead *leadEntity.Lead, apt *aptEntity.Appointment) error {
	body := fmt.Sprintf(`<h2>Your consultation is booked</h2>
<p>Hi %s,</p>
<p>Your consultation is scheduled for <strong>%s</strong> at <strong>%s</strong> (%s).</p>`,
		templateEscape(lead.FirstName), apt.DateString(), apt.AppointmentTime, apt.Timezone)
	if apt.MeetLink != nil && *apt.MeetLink != "" {
		body += fmt.Sprintf(`<p>Join the meeting: <a href="%s">%s</a></p>`, *apt.MeetLink, *apt.MeetLink)
	}
	body += `<p>See you there!</p>`

	err := utils.SendEmailTLS(s.emailConfig(), utils.EmailMessage{
		To:      []string{lead.Email},
		Subject: "Your consultation is confirmed",
		Body:    body,
		IsHTML:  true,
	})
	if err != nil {
		logger.Error("MailerService:SendConfirmation:Error", "appointment_id", apt.ID, "error", err)
		return err
	}

	s.notifyAdmin(lead, apt)
	return nil
}

func (s *MailerService) SendReminder(ctx context.Context, lead *leadEntity.Lead, apt *aptEntity.Appointment) error {
	body := fmt.Sprintf(`<h2>Your consultation starts soon</h2>
<p>Hi %s,</p>
<p>This is a reminder: your consultation is today, <strong>%s</strong> at <strong>%s</strong> (%s).</p>`,
		templateEscape(lead.FirstName), apt.DateString(), apt.AppointmentTime, apt.Timezone)
	if apt.MeetLink != nil && *apt.MeetLink != "" {
		body += fmt.Sprintf(`<p>Join the meeting: <a href="%s">%s</a></p>`, *apt.MeetLink, *apt.MeetLink)
	}

	err := utils.SendEmailTLS(s.emailConfig(), utils.EmailMessage{
		To:      []string{lead.Email},
		Subject: "Reminder: your consultation is coming up",
		Body:    body,
		IsHTML:  true,
	})
	if err != nil {
		logger.Error("MailerService:SendReminder:Error", "appointment_id", apt.ID, "error", err)
		return err
	}
	return nil
}

// notifyAdmin sends a booking copy to the configured admin address. Failures
// are logged only; the lead already has their confirmation.
func (s *MailerService) notifyAdmin(lead *leadEntity.Lead, apt *aptEntity.Appointment) {
	if !utils.IsValidEmail(s.smtp.AdminEmail) {
		return
	}
	body := fmt.Sprintf(`<h3>New consultation booked</h3>
<p>Lead: %s (%s)</p>
<p>Slot: %s %s (%s)</p>`,
		templateEscape(lead.FirstName), templateEscape(lead.Email),
		apt.DateString(), apt.AppointmentTime, apt.Timezone)
	if lead.Phone != nil && *lead.Phone != "" {
		body += fmt.Sprintf("<p>Phone: %s</p>", templateEscape(*lead.Phone))
	}

	err := utils.SendEmailTLS(s.emailConfig(), utils.EmailMessage{
		To:      []string{s.smtp.AdminEmail},
		Subject: "New consultation booked",
		Body:    body,
		IsHTML:  true,
	})
	if err != nil {
		logger.Warn("MailerService:notifyAdmin:Error", "appointment_id", apt.ID, "error", err)
	}
}
