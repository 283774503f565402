package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-pkgz/email"

	"github.com/uniscope/uniscope/pkg/domain"
)

// EmailConfig holds SMTP settings for the notification sender
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	STARTTLS bool
	TLS      bool
	From     string
	FromName string
	BaseURL  string
	Timeout  time.Duration
}

// Sender sends a rendered message, satisfied by go-pkgz/email
type Sender interface {
	Send(text string, params email.Params) error
}

// NewSender builds the SMTP sender from config
func NewSender(cfg EmailConfig) *email.Sender {
	return email.NewSender(cfg.Host,
		email.Port(cfg.Port),
		email.Auth(cfg.Username, cfg.Password),
		email.STARTTLS(cfg.STARTTLS),
		email.TLS(cfg.TLS),
		email.ContentType("text/html"),
		email.Charset("UTF-8"),
		email.TimeOut(cfg.Timeout),
	)
}

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>关键词提醒</h2>
    <p>您好 <strong>{{.UserName}}</strong>，</p>
    <p>您订阅的关键词 <strong>"{{.Keyword}}"</strong> 有新闻更新：</p>
    <div style="background: #f9fafb; padding: 16px; border-left: 4px solid #667eea; margin: 16px 0;">
      <p style="font-size: 18px; font-weight: bold; margin: 0 0 8px 0;">{{.Title}}</p>
      <p style="font-size: 12px; color: #6b7280; margin: 0 0 8px 0;">{{.Category}}{{if .PublishedAt}} | {{.PublishedAt}}{{end}}</p>
      <p style="margin: 0 0 12px 0;">{{.Summary}}</p>
      <a href="{{.SourceURL}}">查看详情 →</a>
    </div>
    <p style="font-size: 12px; color: #6b7280;">
      这是一封自动发送的邮件，请勿回复。<br>
      <a href="{{.UnsubscribeURL}}">取消此关键词订阅</a>
    </p>
  </div>
</body>
</html>
`))

type notificationData struct {
	UserName       string
	Keyword        string
	Title          string
	Category       string
	PublishedAt    string
	Summary        string
	SourceURL      string
	UnsubscribeURL string
}

// renderNotification renders the single-record match email
func renderNotification(rec *domain.Record, sub domain.Subscription, baseURL string) (subject, body string, err error) {
	data := notificationData{
		UserName:       sub.UserName,
		Keyword:        sub.Keyword,
		Title:          rec.Title,
		Category:       rec.Category,
		Summary:        rec.Summary,
		SourceURL:      rec.SourceURL,
		UnsubscribeURL: fmt.Sprintf("%s/api/subscriptions/%d/unsubscribe", baseURL, sub.ID),
	}
	if data.UserName == "" {
		data.UserName = sub.UserEmail
	}
	if rec.PublishedAt != nil {
		data.PublishedAt = rec.PublishedAt.Format("2006-01-02")
	}

	var sb strings.Builder
	if err := notificationTmpl.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render notification: %w", err)
	}

	subject = fmt.Sprintf("[UniScope] 关键词提醒：%s", sub.Keyword)
	return subject, sb.String(), nil
}
