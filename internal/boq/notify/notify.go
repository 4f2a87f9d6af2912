// Package notify emails a processing summary when a workbook finishes
// with outstanding review flags, so a reviewer doesn't have to poll the
// CLI to find out a file needs attention.
package notify

import (
	"fmt"
	"os"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/boqtools/boq-analyzer/internal/boq/model"
)

// Notifier sends a completion email via Resend. A nil client (no API key
// configured) makes every Notify call a no-op, matching the teacher's
// "skip silently if unconfigured" pattern for optional email delivery.
type Notifier struct {
	client    *resend.Client
	fromEmail string
}

// New builds a Notifier from the RESEND_API_KEY / RESEND_FROM_EMAIL
// environment variables. It never returns an error: an absent API key
// just means email is disabled, not a configuration failure.
func New() *Notifier {
	apiKey := os.Getenv("RESEND_API_KEY")
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}

	fromEmail := os.Getenv("RESEND_FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "BoQ Tools <notify@boqtools.dev>"
	}

	return &Notifier{client: client, fromEmail: fromEmail}
}

// Enabled reports whether an API key was configured.
func (n *Notifier) Enabled() bool { return n.client != nil }

// NotifyFileProcessed sends a plain-text summary of fm to recipient when
// the notifier is enabled. Callers typically only invoke this when
// fm.ExportReady is false or fm.ReviewFlags is non-empty.
func (n *Notifier) NotifyFileProcessed(recipient string, fm model.FileMapping) error {
	if !n.Enabled() {
		return nil
	}
	if recipient == "" {
		return fmt.Errorf("notify: recipient email required")
	}

	subject := fmt.Sprintf("BoQ review needed: %s", fm.Metadata.Filename)
	if fm.ExportReady {
		subject = fmt.Sprintf("BoQ processed: %s", fm.Metadata.Filename)
	}

	var flags []string
	for _, f := range fm.ReviewFlags {
		flags = append(flags, string(f))
	}

	html := fmt.Sprintf(
		"<p>File: %s</p><p>Global confidence: %.2f</p><p>Export ready: %v</p><p>Review flags: %s</p>",
		fm.Metadata.Filename, fm.GlobalConfidence, fm.ExportReady, strings.Join(flags, ", "),
	)

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{recipient},
		Subject: subject,
		Html:    html,
	})
	return err
}
