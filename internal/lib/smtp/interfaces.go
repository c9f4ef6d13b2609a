// Package smtp provides the mail transport used by the notification sender.
package smtp

import "io"

// Client is the subset of *smtp.Client the sender needs.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface abstracts connection setup so the sender service can be
// tested without a mail server.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
