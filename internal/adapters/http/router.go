package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Orbit/internal/adapters/signal"
	"github.com/dkeye/Orbit/internal/app/orch"
	"github.com/dkeye/Orbit/internal/auth"
	"github.com/dkeye/Orbit/internal/config"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	sessionName    = "OrbitSessions"
	clientTokenKey = "client_token"
	identityKey    = "identity"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// session cookie. Connection ids are derived from it.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// IdentityMiddleware resolves the caller from the bearer token and the user
// and groups query parameters. A caller that fails verification continues as
// anonymous; what an anonymous connection may do is decided per event.
func IdentityMiddleware(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		id, err := v.Identify(token, c.Query("user"), c.Query("groups"))
		if err != nil {
			log.Info().Err(err).Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).
				Msg("identity rejected, continuing anonymous")
			id = auth.Identity{}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identityOf(c *gin.Context) auth.Identity {
	id, _ := c.Get(identityKey)
	identity, _ := id.(auth.Identity)
	return identity
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no session secret configured, using an ephemeral one")
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"rooms":   o.Rooms.Len(),
			"workers": o.Pool.WorkerLoad(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ctl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	api := r.Group("/api")
	api.GET("/ws/signal", IdentityMiddleware(auth.NewVerifier(cfg.Auth.TokenSecret)), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c, identityOf(c))
	})
	api.GET("/calls", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Rooms.List())
	})
	api.GET("/calls/:roomId", func(c *gin.Context) {
		id := domain.RoomID(c.Param("roomId"))
		peers, ok := o.Rooms.Snapshot(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.PublicMessage(domain.ErrRoomNotFound)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomId": id, "peers": peers})
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
