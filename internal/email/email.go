package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SendText delivers a plain-text message over SMTP with STARTTLS auth.
func SendText(cfg SMTPConfig, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)

	msg := strings.Builder{}
	msg.WriteString("From: " + cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return smtp.SendMail(addr, auth, cfg.From, []string{to}, []byte(msg.String()))
}

// TokenMail builds the access-token delivery mail for a paid subscription.
func TokenMail(chatURL, token, plan, expiresDate string) (subject, body string) {
	planName := "month"
	if plan == "week" {
		planName = "week"
	}

	subject = "Your access to the private course chat"
	body = fmt.Sprintf(`Hello!

Thank you for subscribing for a %s.

Your access to the private chat is active until %s.

Your personal access token:
%s

Chat link:
%s

How to sign in:
1. Open the link: %s
2. Choose "Sign in with token"
3. Paste your access token
4. Done, you are in the chat

Important:
- Keep this token, you will need it to sign in
- The token is valid until %s
- Do not share the token with anyone

The course team`,
		planName, expiresDate, token, chatURL, chatURL, expiresDate)
	return subject, body
}
