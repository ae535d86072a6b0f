package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Brunomssil/design_platform/internal/logging"
	"github.com/Brunomssil/design_platform/internal/models"
	"github.com/Brunomssil/design_platform/internal/mykafka"
	"github.com/Brunomssil/design_platform/internal/service/search"
	"github.com/Brunomssil/design_platform/internal/util"
)

type DesignHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Index    string
	Producer EventPublisher
}

func (h *DesignHandler) publish(c echo.Context, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key, _ := event["design_id"].(string)
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicDesignEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", mykafka.TopicDesignEvents, "error", err)
	}
}

func (h *DesignHandler) CreateDesign(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "design_create")

	var req struct {
		Name       string `json:"name"`
		CanvasData string `json:"canvas_data"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Category   string `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	ownerID, _ := c.Get("userID").(string)

	design := models.Design{
		ID:         uuid.NewString(),
		Name:       req.Name,
		CanvasData: req.CanvasData,
		Width:      req.Width,
		Height:     req.Height,
		Category:   req.Category,
		OwnerID:    ownerID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.DB.WithContext(ctx).Create(&design).Error; err != nil {
		l.Error("design_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if h.ES != nil {
		if err := search.Index(ctx, h.ES, h.Index, &design); err != nil {
			l.Error("design_index_failed", "design_id", design.ID, "error", err)
		}
	}

	h.publish(c, map[string]interface{}{
		"type":      "design_created",
		"design_id": design.ID,
		"owner_id":  ownerID,
	})

	l.Info("design_created", "design_id", design.ID)
	return c.JSON(http.StatusCreated, design)
}

func (h *DesignHandler) GetDesign(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var design models.Design
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&design).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "design not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, design)
}

func (h *DesignHandler) GetDesigns(c echo.Context) error {
	ctx := c.Request().Context()

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Design{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	var items []models.Design
	if err := h.DB.WithContext(ctx).Model(&models.Design{}).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}
