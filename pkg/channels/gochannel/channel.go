// Package gochannel provides the in-process event channel used when no broker is configured.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const defaultBuffer = 256

type Option func(*gochannel.Config)

// WithReplay keeps published messages so subscribers that join later still receive them.
func WithReplay() Option {
	return func(c *gochannel.Config) {
		c.Persistent = true
	}
}

// CreateChannel returns one GoChannel acting as both publisher and subscriber. Without
// WithReplay, messages published before anyone subscribes are dropped.
func CreateChannel(logger watermill.LoggerAdapter, opts ...Option) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	config := gochannel.Config{OutputChannelBuffer: defaultBuffer}

	for _, opt := range opts {
		opt(&config)
	}

	pubSub := gochannel.NewGoChannel(config, logger)

	return pubSub, pubSub, nil
}
