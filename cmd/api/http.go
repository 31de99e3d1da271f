package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/messaging"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const tokenCookie = "token"

// httpOptions configures the REST surface.
type httpOptions struct {
	corsOrigins  []string
	cookieSecure bool
	limiter      *middleware.LimiterStore // nil disables rate limiting
	gatherer     prometheus.Gatherer      // nil disables /metrics
}

type registerBody struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sendBody struct {
	Message string `json:"message"`
}

type conversationDTO struct {
	ConversationID string    `json:"conversationId"`
	PartnerID      string    `json:"partnerId"`
	MessageCount   int       `json:"messageCount"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

// routes builds the gin engine serving the REST API.
func (s *Server) routes(opts httpOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(s.logger), middleware.Metrics(s.metrics))

	corsCfg := cors.DefaultConfig()
	if len(opts.corsOrigins) > 0 {
		corsCfg.AllowOrigins = opts.corsOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsCfg))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "socialchat api", "success": true})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if opts.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")

	user := api.Group("/user")
	if opts.limiter != nil {
		user.Use(middleware.RateLimit(opts.limiter, s.metrics))
	}
	user.POST("/register", s.handleRegister)
	user.POST("/login", s.handleLogin(opts.cookieSecure))
	user.POST("/logout", s.handleLogout(opts.cookieSecure))

	msg := api.Group("/message", s.requireAuth())
	msg.POST("/send/:id", s.handleSend)
	msg.GET("/all/:id", s.handleHistory)
	msg.GET("/conversations", s.handleConversations)

	return r
}

// requireAuth accepts the session cookie or an Authorization bearer token.
// A stale cookie does not hide a valid header.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var candidates []string
		if token, err := c.Cookie(tokenCookie); err == nil && token != "" {
			candidates = append(candidates, token)
		}
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			candidates = append(candidates, token)
		}
		if len(candidates) == 0 {
			abort(c, http.StatusUnauthorized, "User not authenticated")
			return
		}

		for _, token := range candidates {
			claims, err := s.auth.VerifyToken(token)
			if err != nil {
				continue
			}
			c.Request = c.Request.WithContext(withClaims(c.Request.Context(), claims))
			c.Next()
			return
		}
		abort(c, http.StatusUnauthorized, "Invalid token")
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "All fields are required")
		return
	}

	sess, err := s.register(c.Request.Context(), body.Username, body.Email, body.Password)
	switch {
	case errors.Is(err, errMissingCredentials):
		abort(c, http.StatusBadRequest, "All fields are required")
		return
	case errors.Is(err, data.ErrUserExists):
		abort(c, http.StatusBadRequest, "User already exists")
		return
	case err != nil:
		s.logger.Error("register failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"success": true,
		"user":    sess.user,
	})
}

func (s *Server) handleLogin(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body loginBody
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, http.StatusBadRequest, "Email and password are required")
			return
		}

		sess, err := s.login(c.Request.Context(), body.Email, body.Password)
		switch {
		case errors.Is(err, errMissingCredentials):
			abort(c, http.StatusBadRequest, "Email and password are required")
			return
		case errors.Is(err, errInvalidCredentials):
			abort(c, http.StatusUnauthorized, "Invalid email or password")
			return
		case err != nil:
			s.logger.Error("login failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(tokenCookie, sess.token, int(s.auth.Duration().Seconds()), "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome back " + sess.user.Username,
			"success": true,
			"user":    sess.user,
		})
	}
}

func (s *Server) handleLogout(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(tokenCookie, "", -1, "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logout successful", "success": true})
	}
}

func (s *Server) handleSend(c *gin.Context) {
	claims, _ := getClaimsFromContext(c.Request.Context())

	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := s.chat.Send(c.Request.Context(), messaging.SendInput{
		SenderID:   claims.UserID,
		ReceiverID: c.Param("id"),
		Text:       body.Message,
	})
	if err != nil {
		s.respondMessagingError(c, "send", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Message sent successfully",
		"success":    true,
		"newMessage": msg,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	claims, _ := getClaimsFromContext(c.Request.Context())

	msgs, err := s.chat.History(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		s.respondMessagingError(c, "history", err)
		return
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

func (s *Server) handleConversations(c *gin.Context) {
	claims, _ := getClaimsFromContext(c.Request.Context())

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	convs, err := s.chat.Conversations(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		s.respondMessagingError(c, "conversations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"conversations": lo.Map(convs, func(cs *data.ConversationSummary, _ int) conversationDTO {
			return conversationDTO{
				ConversationID: cs.ConversationID.Hex(),
				PartnerID:      cs.PartnerID,
				MessageCount:   cs.MessageCount,
				LastMessageAt:  cs.LastMessageAt,
			}
		}),
	})
}

func (s *Server) respondMessagingError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrUserNotFound):
		abort(c, http.StatusNotFound, "User not found")
	default:
		s.logger.Error("messaging operation failed",
			zap.String("operation", op),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		abort(c, http.StatusInternalServerError, "Internal server error")
	}
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"message": message, "success": false})
}
