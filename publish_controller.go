package crosspost

import (
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-crosspost/platform"
)

// PublishControllerConfig configures the publish controller.
type PublishControllerConfig struct {
	// CurrentUser resolves the authenticated user.
	CurrentUser CurrentUserFunc
}

// PublishController exposes the publish fan-out endpoint.
type PublishController struct {
	publisher *Publisher
	config    PublishControllerConfig
	logger    Logger
}

// NewPublishController creates the publish controller.
func NewPublishController(publisher *Publisher, config PublishControllerConfig, logger Logger) *PublishController {
	if logger == nil {
		logger = defLogger{}
	}
	return &PublishController{
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// RegisterRoutes mounts the publish endpoint on the given router group.
func (c *PublishController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/publish", c.Publish)
}

// MediaPayload is one attachment in a publish request, base64 encoded.
type MediaPayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

// PublishPayload is the publish request body.
type PublishPayload struct {
	Content   string         `json:"content" form:"content"`
	Platforms []string       `json:"platforms" form:"platforms"`
	Media     []MediaPayload `json:"media"`
}

func (p PublishPayload) toRequest() (PublishRequest, error) {
	req := PublishRequest{
		Content:   p.Content,
		Platforms: make([]Platform, 0, len(p.Platforms)),
		Media:     make([]platform.Media, 0, len(p.Media)),
	}

	for _, name := range p.Platforms {
		req.Platforms = append(req.Platforms, Platform(name))
	}

	for _, m := range p.Media {
		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return PublishRequest{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "media data is not valid base64").
				WithCode(goerrors.CodeBadRequest)
		}
		req.Media = append(req.Media, platform.Media{
			Data:     data,
			MimeType: m.MimeType,
			Filename: m.Filename,
			Size:     int64(len(data)),
		})
	}

	return req, nil
}

// Publish fans the request out to the selected platforms and returns one
// result per platform. HTTP status is 200 even when individual platforms
// fail; per-platform outcomes live in the results map.
func (c *PublishController) Publish(ctx router.Context) error {
	userID, err := c.config.CurrentUser(ctx)
	if err != nil {
		return jsonError(ctx, err)
	}

	payload := PublishPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest))
	}

	req, err := payload.toRequest()
	if err != nil {
		return jsonError(ctx, err)
	}

	results, err := c.publisher.Publish(ctx.Context(), userID, req)
	if err != nil {
		return jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"results": results})
}
