package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Message is a rendered email ready for a provider.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type otpView struct {
	Code          string
	ExpiryMinutes int
}

var otpHTML = htmltemplate.Must(htmltemplate.New("otp_html").Parse(`<div style="font-family:sans-serif;max-width:480px;margin:0 auto;padding:32px;background:#f9fafb;border-radius:16px;">
  <div style="text-align:center;margin-bottom:24px;">
    <span style="font-size:48px;">&#x1F43C;</span>
    <h1 style="color:#16a34a;font-size:24px;margin:8px 0 0;">Learning Panda</h1>
  </div>
  <div style="background:white;border-radius:12px;padding:24px;text-align:center;">
    <p style="color:#374151;font-size:15px;margin:0 0 16px;">Your one-time sign-in code is:</p>
    <div style="letter-spacing:8px;font-size:36px;font-weight:700;color:#16a34a;margin:16px 0;padding:16px;background:#f0fdf4;border-radius:8px;border:2px dashed #86efac;">{{.Code}}</div>
    <p style="color:#6b7280;font-size:13px;margin:16px 0 0;">This code expires in <strong>{{.ExpiryMinutes}} minute{{if ne .ExpiryMinutes 1}}s{{end}}</strong>. Do not share it with anyone.</p>
  </div>
  <p style="color:#9ca3af;font-size:12px;text-align:center;margin-top:24px;">If you didn't request this, you can safely ignore this email.</p>
</div>
`))

var otpText = texttemplate.Must(texttemplate.New("otp_text").Parse(
	`Your Learning Panda sign-in code is: {{.Code}}

This code expires in {{.ExpiryMinutes}} minute{{if ne .ExpiryMinutes 1}}s{{end}}. Do not share it with anyone.

If you didn't request this, you can safely ignore this email.
`))

// RenderOTP builds the sign-in email for code. ttl is rounded down to whole minutes (minimum 1).
func RenderOTP(code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	view := otpView{Code: code, ExpiryMinutes: minutes}

	var html, text bytes.Buffer
	if err := otpHTML.Execute(&html, view); err != nil {
		return Message{}, err
	}
	if err := otpText.Execute(&text, view); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: "Your Learning Panda code: " + code,
		HTML:    html.String(),
		Text:    strings.TrimRight(text.String(), "\n"),
	}, nil
}
