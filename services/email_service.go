package services

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
)

// EmailService sends transactional email via SMTP. All callers treat
// delivery as fire-and-forget: a failed send is logged and never fails the
// business operation that triggered it.
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailService creates a new email service instance
func NewEmailService() *EmailService {
	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}

	return &EmailService{
		host:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		port:     port,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     getEnvOrDefault("SMTP_FROM", "noreply@kodexa.app"),
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// SendEnrollmentConfirmation tells a learner a course is now unlocked.
func (e *EmailService) SendEnrollmentConfirmation(toEmail, userName, courseTitle string) error {
	subject := fmt.Sprintf("You're enrolled: %s", courseTitle)
	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Your enrollment in <strong>%s</strong> is confirmed. Head to your dashboard to start learning.</p>
<p>— The Kodexa team</p>
</body></html>`, htmlName(userName), courseTitle)
	return e.sendEmail(toEmail, subject, body)
}

// SendPaymentReceipt sends the single per-payment receipt.
func (e *EmailService) SendPaymentReceipt(toEmail, userName, invoiceNo string, amount float64, courseTitles string) error {
	subject := fmt.Sprintf("Receipt %s", invoiceNo)
	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Thanks for your purchase.</p>
<p>Invoice: <strong>%s</strong><br>
Amount: <strong>$%.2f</strong><br>
Courses: %s</p>
<p>— The Kodexa team</p>
</body></html>`, htmlName(userName), invoiceNo, amount, courseTitles)
	return e.sendEmail(toEmail, subject, body)
}

// SendWithdrawalDecision notifies an instructor about a payout decision.
func (e *EmailService) SendWithdrawalDecision(toEmail, userName, status string, amount float64) error {
	subject := fmt.Sprintf("Your withdrawal request is %s", status)
	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Your withdrawal request for <strong>$%.2f</strong> is now <strong>%s</strong>.</p>
<p>— The Kodexa team</p>
</body></html>`, htmlName(userName), amount, status)
	return e.sendEmail(toEmail, subject, body)
}

func htmlName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func (e *EmailService) sendEmail(to, subject, htmlBody string) error {
	if !e.IsConfigured() {
		log.Printf("SMTP not configured; skipping email %q to %s", subject, to)
		return nil
	}

	// Build the email message with proper headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("Kodexa <%s>", e.from)
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	tlsConfig := &tls.Config{
		ServerName: e.host,
	}

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	conn.Quit()
	return nil
}
