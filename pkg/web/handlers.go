package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-micmon/pkg/audioio"
	"github.com/teslashibe/go-micmon/pkg/hub"
	"github.com/teslashibe/go-micmon/pkg/meter"
	"github.com/teslashibe/go-micmon/pkg/publish"
)

// Status is the body of GET /api/status.
type Status struct {
	Backend string              `json:"backend"`
	Source  audioio.SourceStats `json:"source"`
	Meter   meter.Stats         `json:"meter"`

	// Set only when the corresponding sink is active
	Publish *publish.ForwarderStats `json:"publish,omitempty"`
	Record  *publish.ForwarderStats `json:"record,omitempty"`

	Hub    hub.Stats `json:"hub"`
	Uptime string    `json:"uptime"`
}

// handleStatus returns the pipeline status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	var status Status
	if s.deps.Status != nil {
		status = s.deps.Status()
	}
	status.Hub = s.levels.Stats()
	status.Uptime = time.Since(s.started).Round(time.Second).String()
	return c.JSON(status)
}

// handleDevices lists audio devices
func (s *Server) handleDevices(c *fiber.Ctx) error {
	if s.deps.Devices == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "device listing not configured",
		})
	}

	devices, err := s.deps.Devices()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(devices)
}

// handleLevelsWS streams level readings to a websocket client
func (s *Server) handleLevelsWS(c *websocket.Conn) {
	client := hub.NewClient(s.levels, c)
	if client == nil {
		return
	}
	client.Run()
}
