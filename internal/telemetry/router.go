package telemetry

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"audiostage/internal/driver"
	"audiostage/internal/mixer"
)

// Console is the minimal surface the router's command handlers need
// from the composed AudioSystem (spec §6 "console commands").
type Console interface {
	Drivers() *driver.Registry
	Mixer() *mixer.Mixer
	PlaySound(effectID int32, volume float64) bool
	PlayMusic(path string) error
	StopMusic()
	PauseMusic()
}

// RouterConfig bundles the router's dependencies.
type RouterConfig struct {
	System      Console
	RateLimiter *IPRateLimiter
	Hub         *Hub
	CORSOrigins []string
}

// NewRouter builds the chi router exposing console commands, /metrics,
// /health, and the console WebSocket feed (spec §6, §3.8).
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.Get("/metrics", MetricsHandler().ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeWS)
	}

	r.Route("/console", func(cr chi.Router) {
		cr.Get("/listaudiodrivers", handleListAudioDrivers(cfg.System))
		cr.Get("/inspectaudiodriver/{key}", handleInspectAudioDriver(cfg.System))
		cr.Post("/playsound", handlePlaySound(cfg.System))
		cr.Post("/playmusic", handlePlayMusic(cfg.System))
		cr.Post("/stopmusic", handleStopMusic(cfg.System))
		cr.Post("/pausemusic", handlePauseMusic(cfg.System))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleListAudioDrivers(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out []map[string]interface{}
		for _, d := range sys.Drivers().Installed() {
			out = append(out, map[string]interface{}{
				"identity_keys": d.IdentityKeys(),
				"status":        d.Status(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleInspectAudioDriver(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		d, err := sys.Drivers().FindDriver(key)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"identity_keys": d.IdentityKeys(),
			"interfaces":    d.ListInterfaces(),
			"status":        d.Status(),
		})
	}
}

type playSoundRequest struct {
	EffectID int32   `json:"effect_id"`
	Volume   float64 `json:"volume"`
}

func handlePlaySound(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playSoundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.Volume == 0 {
			req.Volume = 1.0
		}
		ok := sys.PlaySound(req.EffectID, req.Volume)
		writeJSON(w, http.StatusOK, map[string]bool{"started": ok})
	}
}

type playMusicRequest struct {
	Path string `json:"path"`
}

func handlePlayMusic(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playMusicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := sys.PlayMusic(req.Path); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func handleStopMusic(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys.StopMusic()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func handlePauseMusic(sys Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sys.PauseMusic()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

