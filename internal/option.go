package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config

	// logs command.
	serverURL string
	channel   string
	output    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogTail sets the server and channel followed by RunLogs.
func WithLogTail(serverURL, channel string) Option {
	return func(a *application) {
		a.serverURL = serverURL
		a.channel = channel
	}
}

// WithOutput sets where RunLogs writes received lines.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}
