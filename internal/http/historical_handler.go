package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"caudal/internal/historical"
)

type historicalJobRequest struct {
	AccessToken string `json:"accessToken"`
	PropertyID  string `json:"propertyId"`
	DatasetID   string `json:"datasetId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// CreateHistoricalJobAction runs one historical traffic-flow job and
// returns the assembled graph. The response always carries the debug trail
// so a degraded or failed backend is visible to the caller.
func (h *Handler) CreateHistoricalJobAction(c *fiber.Ctx) error {
	var req historicalJobRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "request body must be JSON")
	}

	token := req.AccessToken
	if token == "" {
		token = bearerToken(c)
	}
	key, err := h.store.Resolve(token)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "access token invalid or expired, re-upload the key")
	}

	jobReq := historical.Request{
		PropertyID: req.PropertyID,
		DatasetID:  req.DatasetID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Credential: key,
	}

	result, trail, err := h.jobs.Run(c.Context(), jobReq)
	if errors.Is(err, historical.ErrInvalidRequest) {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.logger.WithError(err).WithField("property", req.PropertyID).Error("Historical job failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"error":  err.Error(),
			"trail":  trail,
		})
	}

	result.Demographics.Geo = annotateGeoCodes(result.Demographics.Geo)

	return c.JSON(fiber.Map{
		"status": "completed",
		"data":   result,
		"trail":  trail,
	})
}

type inspectDataRequest struct {
	AccessToken string `json:"accessToken"`
	PropertyID  string `json:"propertyId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// InspectDataAction summarizes what a property's Data API exposes: a sample
// of its dimension and metric catalog plus a small recent event report. The
// diagnostic console uses it to debug empty historical jobs.
func (h *Handler) InspectDataAction(c *fiber.Ctx) error {
	var req inspectDataRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "request body must be JSON")
	}

	token := req.AccessToken
	if token == "" {
		token = bearerToken(c)
	}
	key, err := h.store.Resolve(token)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "access token invalid or expired, re-upload the key")
	}

	if req.PropertyID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "propertyId is required")
	}

	catalog, err := h.newAnalyticsCatalog(c.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create GA4 client for data inspection")
		return errorJSON(c, fiber.StatusBadGateway, "failed to reach GA4")
	}

	inspection, err := catalog.InspectProperty(c.Context(), req.PropertyID, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.WithError(err).WithField("property", req.PropertyID).Error("Data inspection failed")
		return errorJSON(c, fiber.StatusBadGateway, "data inspection failed")
	}

	return c.JSON(fiber.Map{"data": inspection})
}

// ListHistoricalJobsAction returns the recent job audit log for the
// diagnostic console.
func (h *Handler) ListHistoricalJobsAction(c *fiber.Ctx) error {
	if h.recorder == nil {
		return c.JSON(fiber.Map{"data": []struct{}{}})
	}
	jobs, err := h.recorder.Recent(c.QueryInt("limit", 50))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load job audit log")
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load job history")
	}
	return c.JSON(fiber.Map{"data": jobs})
}

// RevokeTokenAction drops an access token before its TTL elapses.
func (h *Handler) RevokeTokenAction(c *fiber.Ctx) error {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "request body must be JSON")
	}
	token := req.AccessToken
	if token == "" {
		token = bearerToken(c)
	}
	if token == "" {
		return errorJSON(c, fiber.StatusBadRequest, "accessToken is required")
	}
	h.store.Expire(token)
	return c.JSON(fiber.Map{"status": "revoked"})
}
