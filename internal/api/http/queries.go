package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-radar/internal/radar"
)

// countQuery holds the optional frame count. Zero means the gateway default.
type countQuery struct {
	Count int `validate:"gte=0,lte=120"`
}

func (q *countQuery) bind(c *fiber.Ctx) error {
	if s := c.Query("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("count must be an integer")
		}
		q.Count = n
	}
	return validate.Struct(q)
}

type seekQuery struct {
	Index int
}

func (q *seekQuery) bind(c *fiber.Ctx) error {
	s := c.Query("index")
	if s == "" {
		return errors.New("index query parameter is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("index must be an integer")
	}
	q.Index = n
	return nil
}

type stepQuery struct {
	Direction string `validate:"oneof=forward backward"`
}

type speedQuery struct {
	Value float64 `validate:"gt=0"`
}

func (q *speedQuery) bind(c *fiber.Ctx) error {
	s := c.Query("value")
	if s == "" {
		return errors.New("value query parameter is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("value must be a number")
	}
	q.Value = v
	return validate.Struct(q)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := radar.ParseTimestamp(fromStr)
	if err != nil {
		return err
	}
	to, err := radar.ParseTimestamp(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}
