package http

import (
	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/transport/http/handler"
)

// Version is reported by the route index.
var Version = "1.0.0"

// Deps holds everything the router needs. Services are built by the caller
// so the router only maps routes to handlers.
type Deps struct {
	Auth  auth.Service
	Store handler.Pinger
}
