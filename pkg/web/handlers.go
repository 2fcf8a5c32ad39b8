package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
	"github.com/teslashibe/go-drowsy/pkg/episodes"
	"github.com/teslashibe/go-drowsy/pkg/hub"
)

const (
	defaultEpisodeLimit = 20
	maxEpisodeLimit     = 500
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"session": s.monitor.ID(),
		"clients": s.statusHub.ClientCount(),
	})
}

// handleStatus returns the latest snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.monitor.Latest())
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.monitor.Config())
}

// ConfigUpdate is a partial configuration; absent fields are kept.
type ConfigUpdate struct {
	Threshold      *float64                      `json:"threshold"`
	FramesRequired *int                          `json:"frames_required"`
	MissingFace    *drowsiness.MissingFacePolicy `json:"missing_face_policy"`
}

func (u ConfigUpdate) apply(cfg drowsiness.Config) drowsiness.Config {
	if u.Threshold != nil {
		cfg.Threshold = *u.Threshold
	}
	if u.FramesRequired != nil {
		cfg.FramesRequired = *u.FramesRequired
	}
	if u.MissingFace != nil {
		cfg.MissingFace = *u.MissingFace
	}
	return cfg
}

// handleUpdateConfig merges a partial config into the current one. Invalid
// values are rejected as a whole, never clamped.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var req ConfigUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}

	cfg, err := s.monitor.UpdateConfig(req.apply)
	if err != nil {
		return configErrorResponse(c, err)
	}

	s.Publish(hub.EventConfig, cfg)
	return c.JSON(cfg)
}

func (s *Server) handleListPresets(c *fiber.Ctx) error {
	presets := make(map[string]drowsiness.Config)
	for _, name := range drowsiness.PresetNames() {
		cfg, _ := drowsiness.Preset(name)
		presets[name] = cfg
	}
	return c.JSON(presets)
}

func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	name := c.Params("name")
	cfg, err := s.monitor.ApplyPreset(name)
	if errors.Is(err, drowsiness.ErrUnknownPreset) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   err.Error(),
			"presets": drowsiness.PresetNames(),
		})
	}
	if err != nil {
		return configErrorResponse(c, err)
	}

	s.Publish(hub.EventConfig, cfg)
	return c.JSON(fiber.Map{
		"preset": name,
		"config": cfg,
	})
}

// handleReset stops and restarts the session's detection state.
func (s *Server) handleReset(c *fiber.Ctx) error {
	return c.JSON(s.monitor.Reset(c.UserContext()))
}

func (s *Server) handleEpisodes(c *fiber.Ctx) error {
	if s.episodes == nil {
		return c.JSON([]episodes.Episode{})
	}

	limit := c.QueryInt("limit", defaultEpisodeLimit)
	if limit <= 0 || limit > maxEpisodeLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 500",
		})
	}

	eps, err := s.episodes.List(c.UserContext(), c.Query("session"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if eps == nil {
		eps = []episodes.Episode{}
	}
	return c.JSON(eps)
}

func configErrorResponse(c *fiber.Ctx, err error) error {
	var cfgErr *drowsiness.ConfigError
	if errors.As(err, &cfgErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": cfgErr.Error(),
			"field": cfgErr.Field,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
