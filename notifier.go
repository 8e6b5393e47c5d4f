package auth

import (
	"context"
	"fmt"
)

// Notifier delivers reset codes to the principal out of band. Transport
// mechanics (SMTP, queue, SMS) belong to the implementation; the core only
// hands over the data the message must contain.
type Notifier interface {
	SendResetCode(ctx context.Context, email, code, username string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, email, code, username string) error

// SendResetCode implements Notifier.
func (f NotifierFunc) SendResetCode(ctx context.Context, email, code, username string) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, code, username)
}

type stdoutNotifier struct{}

func (stdoutNotifier) SendResetCode(_ context.Context, email, code, username string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s (%s)\n", email, username)
	fmt.Printf("reset code: %s\n", code)
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return stdoutNotifier{}
	}
	return n
}
