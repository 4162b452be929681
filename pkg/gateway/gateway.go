// Package gateway provides the public API for embedding the moderation
// gateway. This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/runtime"
)

// Gateway is the main entry point for running the moderation gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(ctx,
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Storage
	WithStore = runtime.WithStore

	// Advanced options
	WithLogger         = runtime.WithLogger
	WithEventPublisher = runtime.WithEventPublisher
	WithHTTPClient     = runtime.WithHTTPClient
)
