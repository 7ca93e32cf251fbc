package internal

import "github.com/halvard/munin/internal/remote"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	client remote.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRemote overrides the remote client, mainly for tests.
func WithRemote(client remote.Client) Option {
	return func(a *application) {
		a.client = client
	}
}
