package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aogo/server/internal/config"
	"github.com/aogo/server/internal/data"
	"github.com/aogo/server/internal/handler"
	gamenet "github.com/aogo/server/internal/net"
	"github.com/aogo/server/internal/net/packet"
	"github.com/aogo/server/internal/persist"
	"github.com/aogo/server/internal/scripting"
	"github.com/aogo/server/internal/system"
	"github.com/aogo/server/internal/world"
)

// Exit codes: 0 clean shutdown, 1 startup failure, 2 bind failure.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		if errors.Is(err, gamenet.ErrBind) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath = flag.String("config", "config/server.toml", "path to the TOML config file")
		host    = flag.String("host", "", "listen host (overrides config)")
		port    = flag.Int("port", 0, "listen port (overrides config)")
		debug   = flag.Bool("debug", false, "force debug logging")
		useTLS  = flag.Bool("tls", false, "serve TLS (overrides config)")
		tlsCert = flag.String("tls-cert", "", "TLS certificate file")
		tlsKey  = flag.String("tls-key", "", "TLS key file")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Flags beat environment and file. Only flags the user actually set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "tls":
			cfg.Server.TLS = *useTLS
		case "tls-cert":
			cfg.Server.TLSCert = *tlsCert
		case "tls-key":
			cfg.Server.TLSKey = *tlsKey
		case "debug":
			cfg.Logging.Level = "debug"
		}
	})

	log, err := newLogger(cfg.Logging, *debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("server", cfg.Server.Name),
		zap.String("addr", cfg.Server.BindAddress()))

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	kv, err := persist.NewRedis(bootCtx, persist.Options{
		Host:     cfg.KV.Host,
		Port:     cfg.KV.Port,
		DB:       cfg.KV.DB,
		Password: cfg.KV.Password,
		PoolSize: cfg.KV.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("kv store: %w", err)
	}
	defer kv.Close()
	log.Info("kv store connected", zap.String("addr", cfg.KV.Addr()))

	catalogs, err := data.Load(cfg.Game.DataDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	log.Info("catalogs loaded",
		zap.Int("items", len(catalogs.Items)),
		zap.Int("spells", len(catalogs.Spells)),
		zap.Int("npcs", len(catalogs.Npcs)),
		zap.Int("maps", len(catalogs.Maps)),
		zap.Int("classes", len(catalogs.Classes)))

	combat, err := scripting.New(filepath.Join(cfg.Game.ScriptsDir, "combat.lua"))
	if err != nil {
		return fmt.Errorf("combat scripts: %w", err)
	}
	defer combat.Close()

	accounts := persist.NewAccountRepo(kv)
	players := persist.NewPlayerRepo(kv)
	ground := persist.NewGroundRepo(kv)
	clanRepo := persist.NewClanRepo(kv)
	stats := persist.NewStatsRepo(kv)
	effectsRepo := persist.NewEffectsRepo(kv)

	state := world.NewState(catalogs.Maps, cfg.Game.VisionRange)

	clans, err := clanRepo.LoadAll(bootCtx)
	if err != nil {
		return fmt.Errorf("load clans: %w", err)
	}
	state.Update(func(w *world.World) {
		for _, c := range clans {
			w.RegisterClan(c)
		}
	})
	log.Info("clans loaded", zap.Int("count", len(clans)))

	npcCount := spawnWorld(state, catalogs, log)
	log.Info("npcs spawned", zap.Int("count", npcCount))

	groundCount, err := restoreGround(bootCtx, state, ground, log)
	if err != nil {
		return fmt.Errorf("restore ground items: %w", err)
	}
	log.Info("ground items restored", zap.Int("count", groundCount))

	respawner := &system.Respawner{
		Every:    effectsRepo.Interval(bootCtx, "respawn", cfg.Effects.Respawn),
		Catalogs: catalogs,
		Log:      log,
	}

	registry := packet.NewRegistry(log)
	deps := &handler.Deps{
		State:     state,
		Cfg:       cfg,
		Catalogs:  catalogs,
		Combat:    combat,
		Accounts:  accounts,
		Players:   players,
		Ground:    ground,
		ClanRepo:  clanRepo,
		Stats:     stats,
		Respawner: respawner,
		Log:       log,
	}
	handler.RegisterAll(registry, deps)

	engine := system.NewEngine(state, log)
	engine.Register(
		&system.HungerThirst{Every: effectsRepo.Interval(bootCtx, "hunger_thirst", cfg.Effects.HungerThirst)},
		&system.GoldDecay{
			Every: effectsRepo.Interval(bootCtx, "gold_decay", cfg.Effects.GoldDecay),
			Rate:  cfg.Game.GoldDecayRate,
		},
		&system.Meditation{Every: effectsRepo.Interval(bootCtx, "meditation", cfg.Effects.Meditation)},
		&system.Stamina{Every: effectsRepo.Interval(bootCtx, "stamina", cfg.Effects.Stamina)},
		&system.NpcAI{
			Every:       effectsRepo.Interval(bootCtx, "npc_ai", cfg.Effects.NpcAI),
			Catalogs:    catalogs,
			Combat:      combat,
			PathfindCap: cfg.Game.PathfindExpand,
			Log:         log,
		},
		&system.Modifiers{Every: effectsRepo.Interval(bootCtx, "modifiers", cfg.Effects.Modifiers)},
		respawner,
	)
	// Operators retune config:effects:* on a live server; the engine rereads
	// the overrides between ticks, outside the world lock.
	engine.SetIntervalSource(func(name string, fallback time.Duration) time.Duration {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return effectsRepo.Interval(ctx, name, fallback)
	}, 30*time.Second)
	if cfg.Game.GroundItemTTL > 0 {
		engine.Register(&system.GroundSweep{
			Every: time.Second,
			TTL:   time.Duration(cfg.Game.GroundItemTTL) * time.Second,
			// OnRemove fires inside the tick, so the store write moves off
			// the lock path.
			OnRemove: func(mapID, x, y int) {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					err := persist.WithRetry(ctx, func() error {
						return ground.Remove(ctx, mapID, x, y)
					})
					if err != nil {
						log.Warn("ground sweep persist failed", zap.Error(err))
					}
				}()
			},
		})
	}

	server, err := gamenet.NewServer(cfg.Server, cfg.Network, log)
	if err != nil {
		return err
	}
	go server.AcceptLoop()

	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()
	go engine.Run(loopCtx, cfg.Network.TickPeriod)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("listening", zap.String("addr", server.Addr().String()),
		zap.Duration("tick", cfg.Network.TickPeriod))

	bootedAt := time.Unix(cfg.Server.StartTime, 0)
	statsTick := time.NewTicker(30 * time.Second)
	defer statsTick.Stop()
	publishConns := func(n int) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		stats.SetConnections(ctx, n)
	}

	sessions := make(map[uint64]*gamenet.Session)
	for {
		select {
		case s := <-server.NewSessions():
			sessions[s.ID] = s
			s.Start(registry)
			publishConns(len(sessions))
		case id := <-server.DeadSessions():
			if s, ok := sessions[id]; ok {
				delete(sessions, id)
				deps.Disconnect(s)
				publishConns(len(sessions))
			}
		case <-statsTick.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			stats.SetUptime(ctx, bootedAt)
			cancel()
		case sig := <-shutdownCh:
			log.Info("shutting down", zap.String("signal", sig.String()))
			loopCancel()
			saveAllPlayers(state, players, log)
			server.Shutdown(2 * time.Second)
			for _, s := range sessions {
				s.Close()
			}
			log.Info("stopped")
			return nil
		}
	}
}

// spawnWorld places every catalog spawn into the world. A walled-in spawn
// point is a data problem, logged and skipped.
func spawnWorld(state *world.State, catalogs *data.Catalogs, log *zap.Logger) int {
	total := 0
	state.Update(func(w *world.World) {
		for _, sp := range catalogs.Spawns {
			tpl := catalogs.Npcs[sp.TemplateID]
			if tpl == nil {
				log.Warn("spawn references unknown npc template", zap.Int("template", sp.TemplateID))
				continue
			}
			count := sp.Count
			if count < 1 {
				count = 1
			}
			for i := 0; i < count; i++ {
				if _, err := system.SpawnNpc(w, tpl, sp.Map, sp.X, sp.Y); err != nil {
					log.Warn("spawn failed",
						zap.String("npc", tpl.Name),
						zap.Int("map", sp.Map),
						zap.Int("x", sp.X),
						zap.Int("y", sp.Y),
						zap.Error(err))
					continue
				}
				total++
			}
		}
	})
	return total
}

// restoreGround reloads persisted ground stacks so drops survive restarts.
func restoreGround(ctx context.Context, state *world.State, ground *persist.GroundRepo, log *zap.Logger) (int, error) {
	total := 0
	var restoreErr error
	state.Update(func(w *world.World) {
		restoreErr = ground.Restore(ctx, func(mapID, x, y int, g world.GroundItem) {
			if err := w.AddGroundItem(mapID, x, y, g); err != nil {
				log.Warn("dropping unrestorable ground item",
					zap.Int("map", mapID), zap.Int("x", x), zap.Int("y", y),
					zap.Error(err))
				return
			}
			total++
		})
	})
	return total, restoreErr
}

// saveAllPlayers persists every online player. Runs at shutdown; players
// also save individually on disconnect and map change.
func saveAllPlayers(state *world.State, players *persist.PlayerRepo, log *zap.Logger) {
	var snapshot []*world.Player
	state.Update(func(w *world.World) {
		w.AllPlayers(func(p *world.Player) {
			cp := *p
			snapshot = append(snapshot, &cp)
		})
	})
	saved := 0
	for _, p := range snapshot {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := players.Save(ctx, p)
		cancel()
		if err != nil {
			log.Error("save on shutdown failed", zap.String("user", p.Username), zap.Error(err))
			continue
		}
		saved++
	}
	if saved > 0 {
		log.Info("players saved", zap.Int("count", saved))
	}
}

func newLogger(cfg config.LoggingConfig, debug bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	if debug {
		level = zapcore.DebugLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
