package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rainadr/service-fleet-commander/internal/config"
	"github.com/rainadr/service-fleet-commander/internal/server/command/dto"
	"github.com/rainadr/service-fleet-commander/internal/server/command/usecase"
	"github.com/rainadr/service-fleet-commander/pkg/deps"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/middleware"
	"github.com/rainadr/service-fleet-commander/pkg/validator"
	"github.com/rainadr/service-fleet-commander/pkg/wrapper"
	"go.uber.org/zap"
)

type Handler struct {
	Logger     *logger.CanonicalLogger
	UseCase    *usecase.UseCase
	Config     *config.CommanderConfig
	Middleware *middleware.AuthMiddleware
}

func NewHandler(d deps.App, cfg *config.CommanderConfig) *Handler {
	uc := usecase.NewUseCase(usecase.UseCase{
		Registry: d.Registry,
		Store:    d.Store,
		Pub:      d.Pub,
		Logger:   d.Logger,
	})

	h := &Handler{
		Logger:     d.Logger,
		UseCase:    uc,
		Config:     cfg,
		Middleware: d.Middleware,
	}

	// Health check endpoint (no auth required)
	d.Fiber.Get("/health", h.health)

	// Fleet commands (operator tier)
	commands := d.Fiber.Group("/api/command/:targets", d.Middleware.BasicAuth())
	commands.Post("/start", h.start)
	commands.Post("/stop", h.stop)
	commands.Post("/resume", h.resume)
	commands.Post("/pause", h.pause)
	commands.Post("/redeem", h.redeem)
	commands.Get("/keys", h.keys)
	commands.Post("/keys", h.addKeys)
	commands.Post("/input", h.input)
	commands.Post("/reset", h.reset)
	commands.Post("/2fa/token", h.twoFactorToken)
	commands.Post("/2fa/confirmations", h.twoFactorConfirmations)

	// Bot registry and configuration (admin tier, reads excepted)
	d.Fiber.Get("/api/bot/:targets", d.Middleware.BasicAuth(), h.listBots)
	d.Fiber.Put("/api/bot/:targets", d.Middleware.BasicAuthAdmin(), h.updateConfig)
	d.Fiber.Delete("/api/bot/:targets", d.Middleware.BasicAuthAdmin(), h.deleteBots)
	d.Fiber.Post("/api/bot/:name/rename", d.Middleware.BasicAuthAdmin(), h.renameBot)

	return h
}

func (h *Handler) start(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "start_bots"))
	return respond(c, h.UseCase.Start(c.UserContext(), targetsParam(c)))
}

func (h *Handler) stop(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "stop_bots"))
	return respond(c, h.UseCase.Stop(c.UserContext(), targetsParam(c)))
}

func (h *Handler) resume(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "resume_bots"))
	return respond(c, h.UseCase.Resume(c.UserContext(), targetsParam(c)))
}

func (h *Handler) pause(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "pause_bots"))

	// Empty body means a plain temporary pause.
	req := new(dto.PauseRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			logger.AddToContext(c.UserContext(), zap.Error(err))
			return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
		}
		if err := validator.ValidateStruct(req); err != nil {
			logger.AddToContext(c.UserContext(), zap.Error(err))
			return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
		}
	}

	return respond(c, h.UseCase.Pause(c.UserContext(), targetsParam(c), req.Permanent, req.ResumeInSeconds))
}

func (h *Handler) redeem(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "redeem_keys"))

	req := new(dto.RedeemRequest)
	if err := c.BodyParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
	}

	return respond(c, h.UseCase.Redeem(c.UserContext(), targetsParam(c), req.Keys))
}

func (h *Handler) keys(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "list_keys"))
	return respond(c, h.UseCase.Keys(c.UserContext(), targetsParam(c)))
}

func (h *Handler) addKeys(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "add_keys"))

	req := new(dto.AddKeysRequest)
	if err := c.BodyParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
	}

	return respond(c, h.UseCase.AddKeys(c.UserContext(), targetsParam(c), req.Keys))
}

func (h *Handler) input(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "set_input"))

	req := new(dto.InputRequest)
	if err := c.BodyParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
	}

	return respond(c, h.UseCase.Input(c.UserContext(), targetsParam(c), req.Type, req.Value))
}

func (h *Handler) reset(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "reset_bots"))
	return respond(c, h.UseCase.Reset(c.UserContext(), targetsParam(c)))
}

func (h *Handler) twoFactorToken(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "two_factor_token"))
	return respond(c, h.UseCase.TwoFactorToken(c.UserContext(), targetsParam(c)))
}

func (h *Handler) twoFactorConfirmations(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "two_factor_confirmations"))

	req := new(dto.ConfirmationsRequest)
	if err := c.BodyParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
	}

	return respond(c, h.UseCase.TwoFactorConfirmations(c.UserContext(), targetsParam(c), *req.Accept))
}

func (h *Handler) listBots(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "list_bots"))
	return respond(c, h.UseCase.ListBots(c.UserContext(), targetsParam(c)))
}

// updateConfig hands the raw body to the usecase so it can decode a
// fresh configuration copy per target.
func (h *Handler) updateConfig(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "update_config"))

	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	return respond(c, h.UseCase.UpdateConfig(c.UserContext(), targetsParam(c), body))
}

func (h *Handler) deleteBots(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "delete_bots"))
	return respond(c, h.UseCase.DeleteBots(c.UserContext(), targetsParam(c)))
}

func (h *Handler) renameBot(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "rename_bot"))

	req := new(dto.RenameRequest)
	if err := c.BodyParser(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Invalid request body", nil))
	}
	if err := validator.ValidateStruct(req); err != nil {
		logger.AddToContext(c.UserContext(), zap.Error(err))
		return respond(c, wrapper.ResponseFailed(fiber.StatusBadRequest, "Validation failed", validator.TranslateError(err)))
	}

	return respond(c, h.UseCase.RenameBot(c.UserContext(), c.Params("name"), req.NewName))
}

func (h *Handler) health(c *fiber.Ctx) error {
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldOperation, "health_check"))

	return c.JSON(fiber.Map{"status": "healthy"})
}

func targetsParam(c *fiber.Ctx) string {
	targets := c.Params("targets")
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldTargets, targets))
	return targets
}

// respond serializes the full envelope: the aggregated success flag and
// message belong in the body alongside the per-bot data.
func respond(c *fiber.Ctx, res wrapper.JSONResult) error {
	logger.AddToContext(c.UserContext(), logger.Bool(logger.FieldSuccess, res.Success))
	return c.Status(res.Code).JSON(res)
}
