package api

import (
	"errors"
	"log/slog"

	"multichat/app/service/persona"
	"multichat/app/service/room"

	"github.com/elliotchance/pie/v2"
	"github.com/gofiber/fiber/v2"
)

type createRoomResponse struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listBots(c *fiber.Ctx) error {
	return c.JSON(persona.Metadata())
}

func (s *Server) listRooms(c *fiber.Ctx) error {
	return c.JSON(pie.Map(s.registry.List(), func(r *room.Room) room.Info {
		return r.Info()
	}))
}

func (s *Server) createRoom(c *fiber.Ctx) error {
	var req room.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	r, err := s.registry.Create(req)
	if err != nil {
		if errors.Is(err, room.ErrInvalidRoom) || errors.Is(err, room.ErrUnknownBot) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	slog.Info("Room created via API",
		"room_id", r.ID,
		"ip", c.IP(),
		"telegram", true,
	)

	return c.JSON(createRoomResponse{RoomID: r.ID, Name: r.Name})
}
