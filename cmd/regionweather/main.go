package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/regionweather/internal/api"
	"github.com/lox/regionweather/internal/dashboard"
	"github.com/lox/regionweather/internal/mapview"
	"github.com/lox/regionweather/internal/regions"
	"github.com/lox/regionweather/internal/sources"
	"github.com/lox/regionweather/internal/store"
	"github.com/lox/regionweather/internal/timewindow"
	"github.com/lox/regionweather/internal/weather"
)

var cli struct {
	EnvFile   kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Load environment from a .env file.'"`
	DB        string             `help:"Path to the SQLite cache database." default:"data/regionweather.db" env:"DB_PATH"`
	Port      string             `help:"HTTP listen port." default:"8080" env:"PORT"`
	CacheTTL  time.Duration      `help:"Weather cache time-to-live." default:"30m" env:"CACHE_TTL"`
	Tick      time.Duration      `help:"Playback tick interval." default:"1s" env:"PLAYBACK_TICK"`
	BaseURL   string             `help:"Weather provider base URL." env:"WEATHER_BASE_URL"`
	NoPersist bool               `help:"Run without the durable cache copy."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("regionweather"),
		kong.Description("Geospatial weather analytics dashboard engine."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	var cacheStore *store.Store
	if !cli.NoPersist {
		db, err := sql.Open("sqlite", cli.DB)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()

		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")

		cacheStore = store.New(db)
		if err := cacheStore.Migrate(); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("database migrated")
	} else {
		log.Println("persistence disabled (--no-persist)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider := weather.NewClient(cli.BaseURL)

	// The weather service takes the store through an interface; a typed nil
	// would defeat its nil checks.
	var persistent weather.PersistentStore
	if cacheStore != nil {
		persistent = cacheStore
	}
	svc := weather.NewService(provider, persistent, cli.CacheTTL)

	surface := mapview.NewMemory()
	regionStore := regions.NewStore(surface)
	registry := sources.NewRegistry()
	window := timewindow.NewController(cli.Tick)

	var stats dashboard.StatsProvider
	if cacheStore != nil {
		stats = cacheStore
	}
	d := dashboard.New(ctx, window, svc, regionStore, registry, surface, stats)

	server := api.NewServer(d, surface, cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
