package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ahoss-ai/backend/internal/targeting"
	"ahoss-ai/backend/internal/util"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxRequestIDLen = 128

	invalidDataFormatMessage = "Invalid data format"
	internalErrorMessage     = "internal server error"
)

var errMalformedBody = errors.New("body is not a single JSON value")

// Config defines server dependencies.
type Config struct {
	Logger         *logrus.Logger
	AllowedOrigins []string
	StreamEnabled  bool
}

// Server wires HTTP handlers to the targeting service.
type Server struct {
	log            *logrus.Logger
	predictor      *targeting.Service
	allowedOrigins []string
	notifier       *DecisionNotifier
	upgrader       websocket.Upgrader
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger required")
	}

	server := &Server{
		log:            cfg.Logger,
		predictor:      targeting.NewService(cfg.Logger),
		allowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.StreamEnabled {
		server.notifier = NewDecisionNotifier()
		server.upgrader = websocket.Upgrader{CheckOrigin: server.checkOrigin}
	} else {
		cfg.Logger.Info("decision stream disabled via configuration")
	}
	return server, nil
}

// Router configures gin routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(s.requestID(), s.accessLog(), gin.CustomRecovery(s.recoverPanic))

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "not found")
	})
	r.NoMethod(func(c *gin.Context) {
		s.renderError(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/healthz", s.handleHealth)
	r.POST("/predict", s.handlePredict)
	if s.notifier != nil {
		r.GET("/predict/stream", s.handlePredictStream)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePredict(c *gin.Context) {
	timer := util.StartTimer()
	predictor := s.predictor.WithLogger(s.requestLog(c))

	body, err := c.GetRawData()
	if err != nil {
		predictor.Reject(err)
		s.renderError(c, http.StatusBadRequest, invalidDataFormatMessage)
		return
	}
	// The binder stops after the first JSON value; the body must be exactly one.
	if !json.Valid(body) {
		predictor.Reject(errMalformedBody)
		s.renderError(c, http.StatusBadRequest, invalidDataFormatMessage)
		return
	}

	var req PredictRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		predictor.Reject(err)
		s.renderError(c, http.StatusBadRequest, invalidDataFormatMessage)
		return
	}

	scene := req.Scene()
	decision, err := predictor.Predict(scene)
	if err != nil {
		if errors.Is(err, targeting.ErrInvalidDataFormat) {
			s.renderError(c, http.StatusBadRequest, invalidDataFormatMessage)
			return
		}
		s.requestLog(c).WithError(err).Error("predict failed")
		s.renderError(c, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	c.JSON(http.StatusOK, ResponseFromDecision(decision))

	if s.notifier != nil {
		s.notifier.Broadcast(DecisionEvent{
			Type:         "decision",
			RequestID:    c.GetString(requestIDKey),
			EntityCount:  len(scene.Entities),
			TargetID:     decision.TargetID,
			Found:        decision.Found(),
			DurationUsec: timer.ElapsedMicros(),
		})
	}
}

func (s *Server) handlePredictStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.requestLog(c).WithError(err).Warn("decision stream upgrade failed")
		return
	}
	subscriber := s.notifier.Register(conn)
	defer s.notifier.Unregister(subscriber)
	s.requestLog(c).Info("decision stream subscriber connected")

	// Subscribers only listen; reading drains control frames and detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.requestLog(c).WithError(err).Debug("decision stream subscriber disconnected")
			return
		}
	}
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// validRequestID accepts caller ids of printable ASCII up to maxRequestIDLen bytes.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := util.StartTimer()
		c.Next()
		s.requestLog(c).WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": timer.ElapsedMs(),
			"client_ip":   c.ClientIP(),
		}).Debug("request completed")
	}
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.requestLog(c).WithField("panic", recovered).Error("handler panicked")
	s.renderError(c, http.StatusInternalServerError, internalErrorMessage)
}

func (s *Server) requestLog(c *gin.Context) *logrus.Entry {
	return s.log.WithField(requestIDKey, c.GetString(requestIDKey))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
