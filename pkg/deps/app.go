package deps

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rainadr/service-fleet-commander/internal/fleet"
	"github.com/rainadr/service-fleet-commander/internal/store"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/middleware"
	"github.com/rainadr/service-fleet-commander/pkg/pubsub"
)

type App struct {
	Fiber      *fiber.App
	Logger     *logger.CanonicalLogger
	Registry   *fleet.Registry
	Store      store.Store
	Middleware *middleware.AuthMiddleware
	Pub        pubsub.Publisher
}
