package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Mailer sends the notification emails triggered by sharing workflow events.
// All sends are best-effort: callers log failures and never propagate them.
type Mailer interface {
	SendInvitationEmail(ctx context.Context, toEmail, senderName, message, token string, expiresAt time.Time) error
	SendInvitationAcceptedEmail(ctx context.Context, toEmail, toName, accepterName string) error
	SendInvitationDeclinedEmail(ctx context.Context, toEmail, toName, declinerEmail string) error
	SendShareConfiguredEmail(ctx context.Context, toEmail, toName, sharerName string, childNames []string) error
	SendShareRevokedEmail(ctx context.Context, toEmail, toName, sharerName string) error
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string, debug bool) (*EmailService, error) {
	// If fromEmail is empty, create a disabled service
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{
			enabled: false,
			debug:   debug,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(cfg)

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)

	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		debug:      debug,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendInvitationEmail sends a sharing invitation with an accept link
func (s *EmailService) SendInvitationEmail(ctx context.Context, toEmail, senderName, message, token string, expiresAt time.Time) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): invitation to %s", toEmail)
		return nil
	}

	inviteLink := fmt.Sprintf("%s/invitations/%s", s.appBaseURL, token)
	expiryDate := expiresAt.Format("January 2, 2006")

	personalNote := ""
	personalNoteText := ""
	if message != "" {
		personalNote = fmt.Sprintf(`<p style="font-style: italic; border-left: 3px solid #4a90e2; padding-left: 15px;">"%s"</p>`, message)
		personalNoteText = fmt.Sprintf("\nThey added a note:\n\"%s\"\n", message)
	}

	subject := fmt.Sprintf("%s wants to share their children's activities with you", senderName)
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #4a90e2; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Activity Sharing Invitation</h1>
		</div>
		<div class="content">
			<p>Hi,</p>
			<p><strong>%s</strong> has invited you to see what their children are up to. Once you accept, their shared activities will appear alongside your own family's calendar.</p>
			%s
			<p style="text-align: center;">
				<a href="%s" class="button">View Invitation</a>
			</p>
			<p>Or copy and paste this link into your browser:</p>
			<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
			<p><strong>This invitation expires on %s.</strong></p>
			<p>If you don't know %s, you can safely ignore this email.</p>
		</div>
		<div class="footer">
			<p>This is an automated email from KidsActivity. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, senderName, personalNote, inviteLink, inviteLink, expiryDate, senderName)

	textBody := fmt.Sprintf(`Hi,

%s has invited you to see what their children are up to. Once you accept, their shared activities will appear alongside your own family's calendar.
%s
View the invitation:
%s

This invitation expires on %s.

If you don't know %s, you can safely ignore this email.

---
This is an automated email from KidsActivity. Please do not reply.
`, senderName, personalNoteText, inviteLink, expiryDate, senderName)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendInvitationAcceptedEmail notifies a sender that their invitation was accepted
func (s *EmailService) SendInvitationAcceptedEmail(ctx context.Context, toEmail, toName, accepterName string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): invitation accepted to %s", toEmail)
		return nil
	}

	subject := fmt.Sprintf("%s accepted your sharing invitation", accepterName)
	htmlBody := s.simpleHTMLBody("Invitation Accepted", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p><strong>%s</strong> accepted your invitation. They can now see the activities you chose to share.</p>
			<p>You can adjust which children and activity types are visible at any time from your sharing settings.</p>
`, toName, accepterName))

	textBody := fmt.Sprintf(`Hi %s,

%s accepted your invitation. They can now see the activities you chose to share.

You can adjust which children and activity types are visible at any time from your sharing settings.

---
This is an automated email from KidsActivity. Please do not reply.
`, toName, accepterName)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendInvitationDeclinedEmail notifies a sender that their invitation was declined
func (s *EmailService) SendInvitationDeclinedEmail(ctx context.Context, toEmail, toName, declinerEmail string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): invitation declined to %s", toEmail)
		return nil
	}

	subject := "Your sharing invitation was declined"
	htmlBody := s.simpleHTMLBody("Invitation Declined", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>Your invitation to %s was declined. No activities have been shared.</p>
`, toName, declinerEmail))

	textBody := fmt.Sprintf(`Hi %s,

Your invitation to %s was declined. No activities have been shared.

---
This is an automated email from KidsActivity. Please do not reply.
`, toName, declinerEmail)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendShareConfiguredEmail notifies a viewer that a share was set up for
// them, naming the children whose activities are now visible.
func (s *EmailService) SendShareConfiguredEmail(ctx context.Context, toEmail, toName, sharerName string, childNames []string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): share configured to %s", toEmail)
		return nil
	}

	children := "No children are shared yet."
	if len(childNames) > 0 {
		children = fmt.Sprintf("Shared children: %s.", strings.Join(childNames, ", "))
	}

	subject := fmt.Sprintf("%s is sharing activities with you", sharerName)
	htmlBody := s.simpleHTMLBody("Activities Shared With You", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p><strong>%s</strong> set up activity sharing with you. Their children's shared activities will now appear in your calendar.</p>
			<p>%s</p>
`, toName, sharerName, children))

	textBody := fmt.Sprintf(`Hi %s,

%s set up activity sharing with you. Their children's shared activities will now appear in your calendar.

%s

---
This is an automated email from KidsActivity. Please do not reply.
`, toName, sharerName, children)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendShareRevokedEmail notifies a viewer that a share was turned off
func (s *EmailService) SendShareRevokedEmail(ctx context.Context, toEmail, toName, sharerName string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): share revoked to %s", toEmail)
		return nil
	}

	subject := fmt.Sprintf("%s stopped sharing activities with you", sharerName)
	htmlBody := s.simpleHTMLBody("Sharing Ended", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p><strong>%s</strong> has stopped sharing their children's activities with you.</p>
`, toName, sharerName))

	textBody := fmt.Sprintf(`Hi %s,

%s has stopped sharing their children's activities with you.

---
This is an automated email from KidsActivity. Please do not reply.
`, toName, sharerName)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) simpleHTMLBody(heading, content string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">
%s
		</div>
		<div class="footer">
			<p>This is an automated email from KidsActivity. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, heading, content)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if s.debug {
		log.Printf("[DEBUG] Calling SES SendEmail API: to=%s, subject=%s", toEmail, subject)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug && result.MessageId != nil {
		log.Printf("[DEBUG] SES message ID: %s", *result.MessageId)
	}

	log.Printf("Email sent successfully: to=%s, subject=%s", toEmail, subject)
	return nil
}
