package controller

import (
	"airport-capacity-be/internal/dto"
	"airport-capacity-be/internal/pkg/serverutils"
	"airport-capacity-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IUnderstandingController interface {
	RegisterRoutes(r fiber.Router)
	ProcessQuery(ctx *fiber.Ctx) error
	Disambiguate(ctx *fiber.Ctx) error
	SubmitFeedback(ctx *fiber.Ctx) error
	TrackSuggestion(ctx *fiber.Ctx) error
	ApplyLearning(ctx *fiber.Ctx) error
	Metrics(ctx *fiber.Ctx) error
}

type understandingController struct {
	understandingService service.IUnderstandingService
}

func NewUnderstandingController(understandingService service.IUnderstandingService) IUnderstandingController {
	return &understandingController{
		understandingService: understandingService,
	}
}

func (c *understandingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/understanding/v1")
	h.Post("query", c.ProcessQuery)
	h.Post("disambiguate", c.Disambiguate)
	h.Post("feedback", c.SubmitFeedback)
	h.Post("suggestions/:id/used", c.TrackSuggestion)
	h.Post("learn/apply", c.ApplyLearning)
	h.Get("metrics-summary", c.Metrics)
}

func (c *understandingController) ProcessQuery(ctx *fiber.Ctx) error {
	var req dto.ProcessQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.understandingService.ProcessQuery(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process query", res))
}

func (c *understandingController) Disambiguate(ctx *fiber.Ctx) error {
	var req dto.DisambiguateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.understandingService.Disambiguate(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve ambiguity", res))
}

func (c *understandingController) SubmitFeedback(ctx *fiber.Ctx) error {
	var req dto.SubmitFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.understandingService.SubmitFeedback(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success submit feedback", res))
}

func (c *understandingController) TrackSuggestion(ctx *fiber.Ctx) error {
	suggestionID := ctx.Params("id")

	var req dto.TrackSuggestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.understandingService.TrackSuggestion(ctx.Context(), suggestionID, req.ContextID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success track suggestion", res))
}

func (c *understandingController) ApplyLearning(ctx *fiber.Ctx) error {
	var req dto.ApplyLearningRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.understandingService.ApplyLearning(ctx.Context(), req.ContextID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success apply learning", res))
}

func (c *understandingController) Metrics(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success fetch metrics", c.understandingService.Metrics()))
}
