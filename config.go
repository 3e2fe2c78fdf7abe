package kstorm

import (
	"github.com/go-logr/logr"
)

// Option is a function that configures a Client
type Option func(*Client)

// WithLogr sets the logger for the client
var WithLogr = func(log logr.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}
