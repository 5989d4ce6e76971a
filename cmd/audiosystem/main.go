package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"audiostage/internal/audiosystem"
	"audiostage/internal/channel"
	"audiostage/internal/config"
	"audiostage/internal/driver"
	"audiostage/internal/listener"
	"audiostage/internal/mixer"
	"audiostage/internal/sample"
	"audiostage/internal/stage"
	"audiostage/internal/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		} else {
			log.Println("loaded environment from .env")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" AUDIOSTAGE")
	log.Println("================================")

	var (
		noAudio    = flag.Bool("noaudio", false, "disable all audio; skip driver loading")
		noSound    = flag.Bool("nosound", false, "alias for -noaudio")
		noMusic    = flag.Bool("nomusic", false, "skip attaching music/cd channels to the mixer")
		noSFX      = flag.Bool("nosfx", false, "skip attaching sound channels to the mixer")
		noRndPitch = flag.Bool("norndpitch", false, "disable random pitch variation")
		icd        = flag.String("icd", "", "cd driver priority list, ;-delimited identity keys")
		imusic     = flag.String("imusic", "", "music driver priority list, ;-delimited identity keys")
		isfx       = flag.String("isfx", "", "sound driver priority list, ;-delimited identity keys")
		sfxChan    = flag.Int("sfxchan", 0, "override sound-channel count (default 16, max 256)")
		listenAddr = flag.String("http", ":8090", "console/telemetry listen address")
		soundDir   = flag.String("sounddir", getEnvWithDefault("SOUND_DIR", "./sounds"), "directory of <effect-id>.wav/.ogg files")
		pluginDir  = flag.String("plugindir", "", "override plugin discovery directory")
	)
	flag.Parse()

	disableAudio := *noAudio || *noSound

	appCfg := config.Load()
	cvars := appCfg.CVars
	driverCfg := appCfg.Driver
	if *sfxChan > 0 {
		driverCfg.SoundChannelCount = clamp(*sfxChan, 1, 256)
	}
	if *pluginDir != "" {
		driverCfg.PluginPath = *pluginDir
	}

	log.Printf("cvars: rate=%dHz bit16=%v 3d=%v soundvol=%d musicvol=%d", cvars.RateHz, cvars.Bit16, cvars.Enable3D, cvars.SoundVolume, cvars.MusicVolume)
	log.Printf("driver config: sfx channels=%d plugin path=%s", driverCfg.SoundChannelCount, driverCfg.PluginPath)

	startedAt := time.Now()
	clock := func() int64 { return time.Since(startedAt).Milliseconds() }
	tickFromMs := func(ms int64) int64 { return ms * listener.TICKRATE / 1000 }

	var loader sample.Loader
	if fileLoader, err := sample.NewFileLoader(*soundDir); err != nil {
		log.Printf("sample loader disabled: %v (sounds will drop silently)", err)
	} else {
		loader = fileLoader
	}

	gate := &swappableGate{}
	cache := sample.New(loader, gate, func() int64 { return tickFromMs(clock()) })

	registry := driver.NewRegistry()
	if err := registry.Install(driver.NewNullDriver()); err != nil {
		log.Fatalf("installing null driver: %v", err)
	}

	beepDrv := driver.NewBeepDriver(int(cvars.RateHz))
	if !disableAudio {
		if err := registry.Install(beepDrv); err != nil {
			log.Printf("installing beep driver: %v", err)
		}
		for _, e := range driver.LoadPlugins(driverCfg.PluginPath, registry) {
			log.Printf("plugin driver skipped: %v", e)
		}
	}

	mx := mixer.New()

	target := sample.Target{UpsampleFactor: 1, Bit16: cvars.Bit16}
	worldStage := stage.NewWorldStage(stage.New(exclusionFor(cvars), 300, 1200, cacheDurations{cache: cache}, target, clock))

	sys := audiosystem.New(cvars, audiosystem.Deps{
		Cache:         cache,
		Mixer:         mx,
		Drivers:       registry,
		WorldListener: worldStage.Listener,
		Definitions:   audiosystem.StaticDefinitions{},
		ChannelCap:    driverCfg.SoundChannelCount,
		Clock:         clock,
	})
	sys.SetNoRandomPitch(*noRndPitch)
	gate.set(sys)

	if !disableAudio {
		sfxKeys := splitPriorityList(*isfx)
		if len(sfxKeys) == 0 {
			sfxKeys = []string{"beep", "dummy"}
		}
		if err := sys.ActivateSFXDriver(sfxKeys); err != nil {
			log.Printf("no sfx driver activated: %v", err)
		} else if !*noSFX {
			sys.AllocateSoundChannels(driverCfg.SoundChannelCount, channel.Stereo, 2, cvars.RateHz)
		}

		musicKeys := splitPriorityList(*imusic)
		if len(musicKeys) == 0 {
			musicKeys = []string{"beep", "dummy"}
		}
		if !*noMusic {
			if err := sys.ActivateMusicDriver(musicKeys); err != nil {
				log.Printf("no music driver activated: %v", err)
			}
		}

		cdKeys := splitPriorityList(*icd)
		if len(cdKeys) > 0 {
			if _, err := registry.ActivatePriorityList(cdKeys, driver.InterfaceCD); err != nil {
				log.Printf("no cd driver activated: %v", err)
			}
		}
	} else {
		log.Println("audio disabled by flag; running with the null driver only")
		sys.SetBusyMode(true)
	}

	worldStage.OnAddition(func(snd *stage.Sound) {
		now := clock()
		sys.HandleAddition(snd, true, now, tickFromMs(now))
	})
	worldStage.Start()
	sys.Start()

	hub := telemetry.NewHub()
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	rateLimiter := telemetry.NewIPRateLimiter(telemetry.DefaultRateLimitConfig)
	router := telemetry.NewRouter(telemetry.RouterConfig{
		System:      sys,
		RateLimiter: rateLimiter,
		Hub:         hub,
	})

	server := &http.Server{Addr: *listenAddr, Handler: router}
	go func() {
		log.Printf("console/telemetry server on http://localhost%s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("telemetry server failed: %v", err)
		}
	}()

	log.Println("audio subsystem ready; press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	close(hubStop)
	rateLimiter.Stop()
	_ = server.Close()
	worldStage.Stop()
	sys.Stop()
	beepDrv.Deinitialize()
	log.Println("goodbye")
}

// swappableGate lets the sample cache quiesce the audio system's refresh
// worker even though the worker is created inside audiosystem.New, after
// the cache itself must already exist (spec §4.2 "Concurrency").
type swappableGate struct {
	mu  sync.Mutex
	sys *audiosystem.System
}

func (g *swappableGate) set(sys *audiosystem.System) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sys = sys
}

func (g *swappableGate) Pause() {
	g.mu.Lock()
	sys := g.sys
	g.mu.Unlock()
	if sys != nil {
		sys.PauseRefresh()
	}
}

func (g *swappableGate) Resume() {
	g.mu.Lock()
	sys := g.sys
	g.mu.Unlock()
	if sys != nil {
		sys.ResumeRefresh()
	}
}

// cacheDurations adapts the sample cache into stage.DurationLookup: asking
// a sound's duration forces it into the cache, same as the original's
// "ensure cached to learn duration" step (spec §4.4).
type cacheDurations struct {
	cache *sample.Cache
}

func (d cacheDurations) DurationMs(effectID int32, target sample.Target) (uint32, bool) {
	s := d.cache.Cache(effectID, target)
	if s == nil {
		return 0, false
	}
	return s.DurationMs(), true
}

func exclusionFor(cvars config.CVars) stage.Exclusion {
	if cvars.OverlapStop {
		return stage.OnePerEmitter
	}
	return stage.DontExclude
}

func splitPriorityList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnvWithDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
