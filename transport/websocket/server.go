package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

type roomService interface {
	JoinRoom(ctx context.Context, code, connID string) (entity.Mark, error)
	SubmitMove(ctx context.Context, connID, code string, board, cell int, claimed entity.Mark) error
	Leave(ctx context.Context, connID string)
}

type Server struct {
	ctx    context.Context
	logger *slog.Logger
	conf   config.WebSocket
	hub    *Hub
	rooms  roomService

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, c *client, message *Message) error
}

// New - ctx bounds every connection; cancelling it closes them all.
func New(ctx context.Context, logger *slog.Logger, conf config.WebSocket, hub *Hub, rooms roomService) *Server {
	server := &Server{
		ctx:    ctx,
		logger: logger.With("component", "ws_server"),
		conf:   conf,
		hub:    hub,
		rooms:  rooms,

		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     server.checkOrigin,
	}

	server.handlers[ActionJoinRoom] = server.handleJoinRoom
	server.handlers[ActionMakeMove] = server.handleMakeMove
	server.handlers[ActionLeaveRoom] = server.handleLeaveRoom

	return server
}

// ServeHTTP - upgrades the connection and serves it until either side closes.
func (that *Server) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(conn, that.conf.SendBuffer)
	that.hub.register(c)

	log.Info("WebSocket connection established", "conn", c.id, "remote", req.RemoteAddr)

	ctx, cancel := context.WithCancel(that.ctx)
	defer cancel()

	go that.writePump(ctx, c)
	that.readPump(ctx, c)
}

func (that *Server) checkOrigin(req *http.Request) bool {
	if len(that.conf.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(that.conf.AllowedOrigins, req.Header.Get("Origin"))
}

// readPump - processes inbound messages in order. When it returns the connection has left its room.
func (that *Server) readPump(ctx context.Context, c *client) {
	log := that.logger.With("method", "readPump", "conn", c.id)

	defer func() {
		that.rooms.Leave(ctx, c.id)
		that.hub.unregister(c)
		c.close()
		log.Info("WebSocket connection closed")
	}()

	c.conn.SetReadLimit(that.conf.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(that.conf.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(that.conf.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			that.hub.Send(c.id, rejection(fmt.Errorf("%w: %w", apperror.ErrBadRequest, err)))
			continue
		}

		that.dispatch(ctx, c, &message)
	}
}

func (that *Server) dispatch(ctx context.Context, c *client, message *Message) {
	log := that.logger.With("method", "dispatch", "conn", c.id, "action", message.Action)

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("unknown action")
		that.hub.Send(c.id, rejection(fmt.Errorf("%w: %s", apperror.ErrUnknownAction, message.Action)))
		return
	}

	if err := handler(ctx, c, message); err != nil {
		log.Debug("request rejected", "error", err)
		that.hub.Send(c.id, rejection(err))
	}
}

// writePump - the only goroutine writing to the socket.
func (that *Server) writePump(ctx context.Context, c *client) {
	log := that.logger.With("method", "writePump", "conn", c.id)

	ticker := time.NewTicker(that.conf.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(that.conf.WriteWait))
			return
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(that.conf.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(that.conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}
