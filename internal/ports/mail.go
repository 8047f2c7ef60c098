package ports

import "context"

// MailMessage is a plain transactional email.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single transactional email. Implementations are expected
// to be safe for concurrent use; retry policy belongs to the caller.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}
