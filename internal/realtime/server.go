package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/models"
	"github.com/shenikar/neighbours_care/internal/presence"
)

const maxMessageSize = 4096

// LocationStore - постоянное хранилище координат и времени активности пользователей
type LocationStore interface {
	TouchLastSeen(ctx context.Context, userID uuid.UUID) error
	GetLocation(ctx context.Context, userID uuid.UUID) (*models.Location, error)
	UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.Location) error
}

// TokenVerifier проверяет токен рукопожатия
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Config - параметры websocket-сессий
type Config struct {
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	StoreTimeout  time.Duration
	AllowedOrigin string
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = 2 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// Server принимает websocket-подключения и ведет их жизненный цикл в реестре присутствия
type Server struct {
	registry *presence.Registry
	verifier TokenVerifier
	store    LocationStore
	cfg      Config
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewServer создает realtime-сервер
func NewServer(registry *presence.Registry, verifier TokenVerifier, store LocationStore, cfg Config, logger *logrus.Logger) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		registry: registry,
		verifier: verifier,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.cfg.AllowedOrigin
}

// ServeWS godoc
// @Summary      Realtime session
// @Description  Upgrades to a websocket session. The token is taken from the `token` query parameter or the Authorization header.
// @Tags         realtime
// @Param        token  query  string  false  "JWT access token"
// @Success      101  {string}  string  "switching protocols"
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (s *Server) ServeWS(c *gin.Context) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "realtime",
		"method":  "ServeWS",
	})

	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		log.WithError(err).Warn("Realtime handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication error"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	log = log.WithFields(logrus.Fields{"user_id": identity.UserID, "role": identity.Role})
	s.touchLastSeen(log, identity.UserID)
	initial := s.seedLocation(log, identity)

	session := newSession(identity.UserID, identity.Role, conn, s.cfg.SendBuffer)
	if prev, replaced := s.registry.Register(identity.UserID, identity.Role, session, initial); replaced {
		if old, ok := prev.(*Session); ok {
			old.Close()
		}
		log.Info("Previous realtime session replaced")
	}
	log.Info("Realtime session connected")

	go session.writeLoop(s.cfg.PingInterval, s.cfg.WriteTimeout)
	s.readLoop(log, session)
}

// Notify отправляет событие пользователю, если у него есть живая сессия
func (s *Server) Notify(userID uuid.UUID, event string, payload any) error {
	entry, ok := s.registry.Lookup(userID)
	if !ok {
		return ErrSessionClosed
	}
	return entry.Conn.Send(event, payload)
}

// Shutdown закрывает все открытые сессии. Записи реестра удаляют их readLoop.
func (s *Server) Shutdown() {
	for _, entry := range s.registry.Entries() {
		if session, ok := entry.Conn.(*Session); ok {
			session.Close()
		}
	}
}

func (s *Server) readLoop(log *logrus.Entry, session *Session) {
	defer func() {
		s.registry.UnregisterConn(session.UserID, session)
		session.Close()
		s.touchLastSeen(log, session.UserID)
		log.Info("Realtime session disconnected")
	}()

	conn := session.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		s.registry.Touch(session.UserID)
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Realtime session closed unexpectedly")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reject(session, "malformed message")
			continue
		}

		switch msg.Event {
		case EventVolunteerLocation:
			s.handleLocation(log, session, msg.Data)
		default:
			s.registry.Touch(session.UserID)
		}
	}
}

type locationPayload struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (s *Server) handleLocation(log *logrus.Entry, session *Session, data json.RawMessage) {
	if session.Role != models.RoleVolunteer {
		s.reject(session, "only volunteers can share location")
		return
	}

	var payload locationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Lat == nil || payload.Lng == nil {
		s.reject(session, "location requires lat and lng")
		return
	}
	loc := models.Location{Latitude: *payload.Lat, Longitude: *payload.Lng}
	if !loc.Valid() {
		s.reject(session, "location is out of range")
		return
	}

	if !s.registry.UpdateLocation(session.UserID, loc) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.UpdateLocation(ctx, session.UserID, loc); err != nil {
		log.WithError(err).Warn("Failed to persist volunteer location")
	}
}

func (s *Server) reject(session *Session, reason string) {
	_ = session.Send(EventError, gin.H{"message": reason})
}

func (s *Server) touchLastSeen(log *logrus.Entry, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.TouchLastSeen(ctx, userID); err != nil {
		log.WithError(err).Warn("Failed to update last seen")
	}
}

func (s *Server) seedLocation(log *logrus.Entry, identity auth.Identity) *models.Location {
	if identity.Role != models.RoleVolunteer {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()
	loc, err := s.store.GetLocation(ctx, identity.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to load stored location")
		return nil
	}
	return loc
}
