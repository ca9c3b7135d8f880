package http

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"caudal/internal/bigquery"
	"caudal/internal/ga4"
	"caudal/internal/gauth"
)

// discoveryTimeout bounds the best-effort dataset and property discovery
// after a key upload; a slow Google API must not hang the upload response.
const discoveryTimeout = 15 * time.Second

type uploadKeyRequest struct {
	Key json.RawMessage `json:"key"`
}

type uploadKeyResponse struct {
	AccessToken string             `json:"accessToken"`
	ExpiresIn   int                `json:"expiresIn"`
	ProjectID   string             `json:"projectId"`
	Datasets    []bigquery.Dataset `json:"datasets"`
	Properties  []ga4.Property     `json:"properties"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// UploadKeyAction accepts a service-account key, stores it behind a
// short-lived access token, and best-effort discovers the BigQuery datasets
// and GA4 properties the key can reach. The key itself never leaves the
// server; only the token does.
func (h *Handler) UploadKeyAction(c *fiber.Ctx) error {
	var req uploadKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "request body must be JSON")
	}
	raw := []byte(req.Key)
	if len(raw) == 0 {
		// The whole body is the key file itself.
		raw = c.Body()
	}

	key, err := gauth.ParseKey(raw)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid service account key: "+err.Error())
	}

	token, err := h.store.Store(key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store credential")
		return errorJSON(c, fiber.StatusInternalServerError, "failed to store credential")
	}

	resp := uploadKeyResponse{
		AccessToken: token,
		ExpiresIn:   int(h.store.TTL().Seconds()),
		ProjectID:   key.ProjectID,
		Datasets:    []bigquery.Dataset{},
		Properties:  []ga4.Property{},
	}

	ctx, cancel := defaultContext(c, discoveryTimeout)
	defer cancel()

	if catalog, err := h.newDatasetCatalog(ctx, key); err != nil {
		resp.Warnings = append(resp.Warnings, "dataset discovery unavailable: "+err.Error())
	} else if datasets, err := catalog.ListDatasets(ctx, key.ProjectID); err != nil {
		h.logger.WithError(err).Warn("Dataset discovery failed after key upload")
		resp.Warnings = append(resp.Warnings, "dataset discovery failed: "+err.Error())
	} else if datasets != nil {
		resp.Datasets = datasets
	}

	if catalog, err := h.newAnalyticsCatalog(ctx, key); err != nil {
		resp.Warnings = append(resp.Warnings, "property discovery unavailable: "+err.Error())
	} else if props, err := catalog.ListProperties(ctx); err != nil {
		h.logger.WithError(err).Warn("Property discovery failed after key upload")
		resp.Warnings = append(resp.Warnings, "property discovery failed: "+err.Error())
	} else if props != nil {
		resp.Properties = props
	}

	h.logger.WithFields(logrus.Fields{
		"project":    key.ProjectID,
		"datasets":   len(resp.Datasets),
		"properties": len(resp.Properties),
	}).Info("Service account key uploaded")

	return c.JSON(resp)
}
