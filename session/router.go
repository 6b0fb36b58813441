package session

import (
	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/presence"
	"github.com/HMasataka/presencehub/registry"
	"github.com/HMasataka/presencehub/router"
	"github.com/jonboulle/clockwork"
)

func NewRouter(hub domain.Hub, reg *presence.Registry, clock clockwork.Clock, logger *logging.Logger) *router.Router {
	handlers := registry.NewHandlerRegistry()

	handlers.Register(domain.MessageTypeRename, NewRenameHandler(hub, reg, logger))
	handlers.Register(domain.MessageTypeEcho, NewEchoHandler(hub, reg, clock, logger))
	handlers.Register(domain.MessageTypeBroadcast, NewBroadcastHandler(hub, reg, clock, logger))

	return router.NewRouter(handlers, logger)
}
