package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
)

// MailConfig carries branding used in every message.
type MailConfig struct {
	AppName     string
	FrontendURL string
}

// MailService renders the society's templated emails and hands them to a MailSender.
type MailService struct {
	sender  MailSender
	cfg     MailConfig
	metrics *metrics.Registry
	html    *htmltemplate.Template
	text    *texttemplate.Template
	now     func() time.Time
}

// NewMailService builds a MailService over sender.
func NewMailService(sender MailSender, cfg MailConfig, m *metrics.Registry) *MailService {
	if cfg.AppName == "" {
		cfg.AppName = "Society for Cyber Intelligent Systems"
	}
	return &MailService{
		sender:  sender,
		cfg:     cfg,
		metrics: m,
		html:    htmltemplate.Must(htmltemplate.New("html").Parse(baseHTMLTemplate)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate)),
		now:     time.Now,
	}
}

// EmailDetail is one labelled row in a message body.
type EmailDetail struct {
	Label string
	Value string
}

// EmailData is the view model of the base templates.
type EmailData struct {
	Title      string
	Greeting   string
	Paragraphs []string
	Details    []EmailDetail
	Code       string
	ImageURL   htmltemplate.URL
	ButtonURL  string
	ButtonTxt  string
	AppName    string
	Year       int
}

const dateLayout = "02 Jan 2006"

// SendOTP emails a one-time code for account verification or password reset.
func (s *MailService) SendOTP(ctx context.Context, to, firstName, code, purpose string) error {
	subject, intro := "Verify your email address", "Use the code below to verify your account. It expires in 30 minutes."
	if purpose == models.OTPPurposeReset {
		subject, intro = "Reset your password", "Use the code below to reset your password. It expires in 30 minutes. If you did not request this, you can ignore this email."
	}
	return s.deliver(ctx, "otp", to, subject, EmailData{
		Title:      subject,
		Greeting:   greeting(firstName),
		Paragraphs: []string{intro},
		Code:       code,
	})
}

// SendMembershipApproved notifies an applicant that their membership was issued.
func (s *MailService) SendMembershipApproved(ctx context.Context, m *models.Membership) error {
	return s.deliver(ctx, "membership_approved", m.Email, "Your membership has been approved", EmailData{
		Title:    "Membership approved",
		Greeting: greeting(m.FirstName),
		Paragraphs: []string{
			"Congratulations! Your membership application has been reviewed and approved.",
		},
		Details:   membershipDetails(m),
		ButtonURL: s.link("/membership"),
		ButtonTxt: "View membership",
	})
}

// SendPaymentApproved notifies a member that their payment proof was accepted.
func (s *MailService) SendPaymentApproved(ctx context.Context, m *models.Membership, v *models.PaymentVerification) error {
	intro := "Your payment has been verified and your membership is now active."
	if v.IsUpgrade {
		intro = fmt.Sprintf("Your payment has been verified and your membership has been upgraded from %s to %s.",
			v.PreviousMembershipType, v.MembershipType)
	}
	details := append(membershipDetails(m),
		EmailDetail{Label: "Amount", Value: fmt.Sprintf("%d", v.Amount)},
		EmailDetail{Label: "Transaction ID", Value: v.TransactionID},
	)
	return s.deliver(ctx, "payment_approved", m.Email, "Payment verified", EmailData{
		Title:      "Payment verified",
		Greeting:   greeting(m.FirstName),
		Paragraphs: []string{intro},
		Details:    details,
		ButtonURL:  s.link("/membership"),
		ButtonTxt:  "View membership",
	})
}

// SendNotification forwards an announcement or event notification by email.
func (s *MailService) SendNotification(ctx context.Context, r models.Recipient, n *models.Notification) error {
	button := n.Link
	if button == "" {
		button = s.link("/notifications")
	}
	return s.deliver(ctx, "notification_"+n.Type, r.Email, n.Title, EmailData{
		Title:      n.Title,
		Greeting:   greeting(r.FirstName),
		Paragraphs: strings.Split(n.Message, "\n"),
		ImageURL:   emailImage(n),
		ButtonURL:  button,
		ButtonTxt:  "Open",
	})
}

// SendNewsletterWelcome confirms a newsletter subscription.
func (s *MailService) SendNewsletterWelcome(ctx context.Context, sub *models.Subscriber) error {
	return s.deliver(ctx, "newsletter_welcome", sub.Email, "Welcome to our newsletter", EmailData{
		Title:    "Thanks for subscribing",
		Greeting: greeting(sub.FirstName),
		Paragraphs: []string{
			fmt.Sprintf("You will receive our %s newsletter with society news, events and research highlights.", sub.Frequency),
			"You can unsubscribe at any time from the link in any newsletter.",
		},
		ButtonURL: s.link("/newsletter/unsubscribe?email=" + url.QueryEscape(sub.Email)),
		ButtonTxt: "Manage subscription",
	})
}

func (s *MailService) deliver(ctx context.Context, template, to, subject string, data EmailData) error {
	data.AppName = s.cfg.AppName
	data.Year = s.now().Year()

	var hb, tb bytes.Buffer
	if err := s.html.Execute(&hb, data); err != nil {
		return fmt.Errorf("rendering %s html: %w", template, err)
	}
	if err := s.text.Execute(&tb, data); err != nil {
		return fmt.Errorf("rendering %s text: %w", template, err)
	}

	err := s.sender.Send(ctx, MailMessage{To: to, Subject: subject, HTML: hb.String(), Text: tb.String()})
	if s.metrics != nil {
		s.metrics.EmailsTotal.WithLabelValues(template, metrics.Result(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("sending %s email to %s: %w", template, to, err)
	}
	return nil
}

func (s *MailService) link(path string) string {
	if s.cfg.FrontendURL == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.FrontendURL, "/") + path
}

// emailImage only embeds data URIs of image media types.
func emailImage(n *models.Notification) htmltemplate.URL {
	if !strings.HasPrefix(n.ImageType, "image/") {
		return ""
	}
	return htmltemplate.URL(n.ImageURL())
}

func greeting(firstName string) string {
	if strings.TrimSpace(firstName) == "" {
		return "Hello,"
	}
	return "Dear " + strings.TrimSpace(firstName) + ","
}

func membershipDetails(m *models.Membership) []EmailDetail {
	details := []EmailDetail{
		{Label: "Membership ID", Value: m.MembershipID},
		{Label: "Membership type", Value: m.MembershipType},
	}
	if m.IssueDate != nil {
		details = append(details, EmailDetail{Label: "Issue date", Value: m.IssueDate.Format(dateLayout)})
	}
	if m.ExpiryDate != nil {
		details = append(details, EmailDetail{Label: "Valid until", Value: m.ExpiryDate.Format(dateLayout)})
	}
	return details
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f1f5f9; color: #0f172a; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .wrapper { width: 100%; padding: 32px 12px; box-sizing: border-box; }
    .container { max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
    .header { padding: 24px 32px; background: #1e3a8a; color: #ffffff; font-weight: 700; letter-spacing: 0.5px; }
    .hero { padding: 32px; }
    h1 { margin: 0 0 16px; font-size: 24px; }
    p { margin: 0 0 16px; line-height: 1.6; color: #334155; }
    .code { font-size: 32px; font-weight: 700; letter-spacing: 8px; text-align: center; padding: 16px; background: #eff6ff; border-radius: 8px; }
    table.details { width: 100%; border-collapse: collapse; margin: 16px 0; }
    table.details td { padding: 8px 0; border-bottom: 1px solid #e2e8f0; }
    table.details td.label { color: #64748b; width: 40%; }
    .btn { display: inline-block; padding: 12px 24px; background: #2563eb; color: #ffffff !important; text-decoration: none; border-radius: 8px; font-weight: 600; }
    .footer { padding: 16px 32px; color: #64748b; font-size: 12px; text-align: center; border-top: 1px solid #e2e8f0; }
  </style>
</head>
<body>
  <div class="wrapper">
    <div class="container">
      <div class="header">{{.AppName}}</div>
      <div class="hero">
        <h1>{{.Title}}</h1>
        <p>{{.Greeting}}</p>
        {{range .Paragraphs}}<p>{{.}}</p>{{end}}
        {{if .Code}}<div class="code">{{.Code}}</div>{{end}}
        {{if .Details}}
        <table class="details">
          {{range .Details}}<tr><td class="label">{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}
        </table>
        {{end}}
        {{if .ImageURL}}<p><img src="{{.ImageURL}}" alt="" style="max-width:100%"></p>{{end}}
        {{if .ButtonURL}}<p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>{{end}}
      </div>
      <div class="footer">&copy; {{.Year}} {{.AppName}}</div>
    </div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Greeting}}
{{range .Paragraphs}}
{{.}}
{{end}}{{if .Code}}
Code: {{.Code}}
{{end}}{{range .Details}}
{{.Label}}: {{.Value}}{{end}}
{{if .ButtonURL}}
{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`
