// Package server exposes the agent's actions over HTTP for chat hosts that run out of process.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	"github.com/ggonzalez94/agentkit/internal/agent"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/model"
	"github.com/ggonzalez94/agentkit/internal/schema"
	"github.com/ggonzalez94/agentkit/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	agent   *agent.Agent
	log     hclog.Logger
	engine  *gin.Engine
	metrics *metrics
}

type metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentkit",
			Name:      "action_invocations_total",
			Help:      "Action invocations by action and outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentkit",
			Name:      "action_duration_seconds",
			Help:      "Action handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
	m.registry.MustRegister(m.invocations, m.duration)
	return m
}

// InvokeRequest is the POST /actions/:name body.
type InvokeRequest struct {
	Text    string         `json:"text"`
	UserID  string         `json:"user_id"`
	Options action.Options `json:"options"`
}

type InvokeResponse struct {
	Action    string           `json:"action,omitempty"`
	Plugin    string           `json:"plugin,omitempty"`
	MessageID string           `json:"message_id,omitempty"`
	Contents  []action.Content `json:"contents"`
	Error     *model.ErrorBody `json:"error,omitempty"`
}

func New(ag *agent.Agent, log hclog.Logger) *Server {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	s := &Server{agent: ag, log: log.Named("http"), metrics: newMetrics()}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog)
	engine.GET("/healthz", s.health)
	engine.GET("/plugins", s.plugins)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	actions := engine.Group("/actions")
	{
		actions.GET("", s.listActions)
		actions.GET("/:name", s.showAction)
		actions.POST("/:name", s.invoke)
	}
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status(), "duration", time.Since(start))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.CLIVersion})
}

func (s *Server) plugins(c *gin.Context) {
	c.JSON(http.StatusOK, schema.Plugins(s.agent.Registry()))
}

func (s *Server) listActions(c *gin.Context) {
	c.JSON(http.StatusOK, schema.Actions(s.agent.Registry(), c.Query("plugin")))
}

func (s *Server) showAction(c *gin.Context) {
	act, plugin, err := s.agent.Resolve(c.Param("name"))
	if err != nil {
		c.JSON(statusFor(err), InvokeResponse{Contents: []action.Content{}, Error: errorBody(err)})
		return
	}
	c.JSON(http.StatusOK, schema.Action(plugin, act))
}

func (s *Server) invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		err = clierr.Wrap(clierr.CodeUsage, "invalid request body", err)
		c.JSON(http.StatusBadRequest, InvokeResponse{Contents: []action.Content{}, Error: errorBody(err)})
		return
	}
	name := c.Param("name")
	if _, _, err := s.agent.Resolve(name); err != nil {
		s.metrics.invocations.WithLabelValues(strings.ToUpper(name), "rejected").Inc()
		c.JSON(statusFor(err), InvokeResponse{Contents: []action.Content{}, Error: errorBody(err)})
		return
	}

	start := time.Now()
	res, err := s.agent.Invoke(c.Request.Context(), agent.Request{
		Action:  name,
		UserID:  req.UserID,
		Text:    req.Text,
		Options: req.Options,
	})
	s.metrics.duration.WithLabelValues(res.Action).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = string(clierr.KindOf(err))
	}
	s.metrics.invocations.WithLabelValues(res.Action, outcome).Inc()

	body := InvokeResponse{Action: res.Action, Plugin: res.Plugin, MessageID: res.MessageID, Contents: res.Contents}
	if body.Contents == nil {
		body.Contents = []action.Content{}
	}
	if err != nil {
		s.log.Warn("action failed", "action", res.Action, "error", err)
		body.Error = errorBody(err)
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func errorBody(err error) *model.ErrorBody {
	code := clierr.ExitCode(err)
	return &model.ErrorBody{
		Code:    code,
		Type:    clierr.TypeName(clierr.Code(code)),
		Kind:    string(clierr.KindOf(err)),
		Message: err.Error(),
	}
}

func statusFor(err error) int {
	typed, ok := clierr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch typed.Code {
	case clierr.CodeUsage:
		if strings.HasPrefix(typed.Message, "unknown action") {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case clierr.CodeValidation:
		return http.StatusBadRequest
	case clierr.CodeAuth:
		return http.StatusUnauthorized
	case clierr.CodeBlocked:
		return http.StatusForbidden
	case clierr.CodeConfig, clierr.CodeSigner:
		return http.StatusPreconditionFailed
	case clierr.CodeSimulation:
		return http.StatusUnprocessableEntity
	case clierr.CodeRateLimited:
		return http.StatusTooManyRequests
	case clierr.CodeUnavailable, clierr.CodeStale:
		return http.StatusBadGateway
	case clierr.CodeUnsupported:
		return http.StatusNotImplemented
	case clierr.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
