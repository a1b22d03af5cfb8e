package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// DefaultMinDepthKm is the /deep-earthquakes threshold when none is given.
const DefaultMinDepthKm = 25.0

var validate = validator.New()

// EventReader serves the stored events.
type EventReader interface {
	ListEvents(ctx context.Context) ([]quake.Event, error)
	DeepEvents(ctx context.Context, minDepth float64) ([]quake.Event, error)
}

// RunReporter exposes the outcome of the latest ingestion run.
type RunReporter interface {
	LastRun() (quake.RunStats, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, events EventReader, volcanoes quake.VolcanoStore, runs RunReporter) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Iceland Earthquake Monitoring API is running!"})
	})

	app.Get("/earthquakes", func(c *fiber.Ctx) error {
		list, err := events.ListEvents(c.UserContext())
		if err != nil {
			return storeError(err, "failed to fetch earthquake data")
		}
		return c.JSON(list)
	})

	app.Get("/deep-earthquakes", func(c *fiber.Ctx) error {
		var q deepQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		list, err := events.DeepEvents(c.UserContext(), q.MinDepth)
		if err != nil {
			return storeError(err, "failed to fetch deep earthquake data")
		}
		return c.JSON(fiber.Map{
			"count":       len(list),
			"earthquakes": list,
		})
	})

	app.Get("/volcanoes", func(c *fiber.Ctx) error {
		list, err := volcanoes.ListVolcanoes(c.UserContext())
		if err != nil {
			return storeError(err, "failed to fetch volcano data")
		}
		return c.JSON(list)
	})

	app.Get("/scrape-volcanoes", func(c *fiber.Ctx) error {
		n, err := quake.ReloadVolcanoes(c.UserContext(), volcanoes)
		if err != nil {
			return storeError(err, "failed to load volcano data")
		}
		if n == 0 {
			return c.JSON(fiber.Map{"message": "No volcano data was found."})
		}
		return c.JSON(fiber.Map{"message": fmt.Sprintf("Successfully retrieved %d volcanoes.", n)})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		stats, err := runs.LastRun()
		resp := fiber.Map{"lastRun": stats}
		if err != nil {
			resp["lastError"] = err.Error()
		}
		return c.JSON(resp)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// deepQuery holds query parameters for the deep events endpoint.
type deepQuery struct {
	MinDepth float64 `validate:"gte=0"`
}

func (q *deepQuery) bind(c *fiber.Ctx) error {
	q.MinDepth = DefaultMinDepthKm
	if s := c.Query("min_depth"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("min_depth must be a number")
		}
		q.MinDepth = v
	}
	return validate.Struct(q)
}

func storeError(err error, msg string) error {
	if errors.Is(err, quake.ErrStorageUnavailable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, msg)
	}
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}
