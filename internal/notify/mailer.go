package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

const completionSubject = "Your laundry order has been completed!"

const completionBody = `<h2>Hi %s,</h2>
<p>Your laundry order <b>#%s</b> has just been marked as <b>completed</b> by the worker and is ready for pickup/delivery.</p>
<p>If you have questions, please contact the laundry support team.</p>
<br/><p>Thanks,<br/>CleanWash</p>`

// CompletionMail is the notification boundary: one outbound call per
// completed order.
type CompletionMail struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	OrderID string `json:"order_id"`
}

type Mailer struct {
	client *mail.Client
	from   string
}

func NewMailer(host string, port int, user, password, from string) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}
	c, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	return &Mailer{client: c, from: from}, nil
}

func (m *Mailer) Send(ctx context.Context, cm CompletionMail) error {
	if cm.Email == "" {
		return errors.New("email address is required")
	}
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(cm.Email); err != nil {
		return err
	}
	subject, body := completionMessage(cm)
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return m.client.DialAndSendWithContext(ctx, msg)
}

func completionMessage(cm CompletionMail) (subject, body string) {
	name := cm.Name
	if name == "" {
		name = "Student"
	}
	short := cm.OrderID
	if len(short) > 8 {
		short = short[:8]
	}
	return completionSubject, fmt.Sprintf(completionBody, name, short)
}
