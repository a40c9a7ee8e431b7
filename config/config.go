package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// Config es la configuración completa del monitor y del panel.
type Config struct {
	Venues  VenuesConfig  `yaml:"venues"`
	Pairs   []domain.Pair `yaml:"pairs"`
	Signal  SignalConfig  `yaml:"signal"`
	Fees    FeesConfig    `yaml:"fees"`
	Funding FundingConfig `yaml:"funding"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Panel   PanelConfig   `yaml:"panel"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// VenuesConfig contiene los hosts REST de cada venue.
type VenuesConfig struct {
	AsterHost   string `yaml:"aster_host"`
	LighterHost string `yaml:"lighter_host"`
}

// SignalConfig controla las señales y la cadencia del poller.
type SignalConfig struct {
	Lookback         int     `yaml:"lookback"`   // ventana del z-score en samples
	EMAWindow        int     `yaml:"ema_window"` // ventana de la EMA
	EnterZ           float64 `yaml:"enter_z"`
	ExitZ            float64 `yaml:"exit_z"`
	PollMS           int     `yaml:"poll_ms"`
	DepthLevels      int     `yaml:"depth_levels"`
	StaleMSThreshold int64   `yaml:"stale_ms_threshold"`
	SkewMSThreshold  int64   `yaml:"skew_ms_threshold"`
}

// VenueFees son los fees explícitos de un venue, fallback cuando la API no
// los expone.
type VenueFees struct {
	Maker *float64 `yaml:"maker"`
	Taker *float64 `yaml:"taker"`
}

// FeesConfig agrupa los fees por venue.
type FeesConfig struct {
	Aster   VenueFees `yaml:"aster"`
	Lighter VenueFees `yaml:"lighter"`
}

// FundingConfig controla el advisory de funding.
type FundingConfig struct {
	CycleHours  map[string]int `yaml:"cycle_hours"` // fallback por venue
	NotionalUSD float64        `yaml:"notional_usd"`
}

// IngestConfig apunta al panel. Vacío desactiva la publicación (y con ella
// el advisory de funding del monitor).
type IngestConfig struct {
	URL      string `yaml:"url"`       // POST de samples
	AdminURL string `yaml:"admin_url"` // GET de rate limits al arrancar
}

// PanelConfig controla el servidor del panel.
type PanelConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el .env si existe.
// Un YAML ausente no es error: se arranca con defaults y entorno, pensado
// para probar el monitor sin tocar nada.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollEvery devuelve la cadencia de tick como time.Duration.
func (c *Config) PollEvery() time.Duration {
	return time.Duration(c.Signal.PollMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están
// presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASTER_HOST"); v != "" {
		cfg.Venues.AsterHost = v
	}
	if v := os.Getenv("LIGHTER_HOST"); v != "" {
		cfg.Venues.LighterHost = v
	}
	if v := os.Getenv("DEPTH_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Signal.DepthLevels = n
		}
	}
	if v := os.Getenv("SPREADWATCH_DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("INGEST_URL"); v != "" {
		cfg.Ingest.URL = v
	}
	if v := os.Getenv("PANEL_ADDR"); v != "" {
		cfg.Panel.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Venues.AsterHost == "" {
		cfg.Venues.AsterHost = "https://fapi.asterdex.com"
	}
	if cfg.Venues.LighterHost == "" {
		cfg.Venues.LighterHost = "https://mainnet.zklighter.elliot.ai"
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = []domain.Pair{{
			Name: "BTCUSDT",
			A:    domain.Market{Venue: domain.VenueLighter, Symbol: "BTC"},
			B:    domain.Market{Venue: domain.VenueAster, Symbol: "BTCUSDT"},
		}}
	}
	if cfg.Signal.Lookback <= 1 {
		cfg.Signal.Lookback = 60
	}
	if cfg.Signal.EMAWindow <= 0 {
		cfg.Signal.EMAWindow = 30
	}
	if cfg.Signal.EnterZ == 0 {
		cfg.Signal.EnterZ = 2.0
	}
	if cfg.Signal.ExitZ == 0 {
		cfg.Signal.ExitZ = 0.5
	}
	if cfg.Signal.PollMS <= 0 {
		cfg.Signal.PollMS = 1000
	}
	if cfg.Signal.DepthLevels <= 0 {
		cfg.Signal.DepthLevels = 5
	}
	if cfg.Signal.StaleMSThreshold <= 0 {
		cfg.Signal.StaleMSThreshold = 3000
	}
	if cfg.Signal.SkewMSThreshold <= 0 {
		cfg.Signal.SkewMSThreshold = 500
	}
	// El default de ciclo es por venue, no por mapa: un YAML que fija solo
	// un venue no debe dejar al otro en 0.
	if cfg.Funding.CycleHours == nil {
		cfg.Funding.CycleHours = map[string]int{}
	}
	for _, venue := range []string{domain.VenueAster, domain.VenueLighter} {
		if cfg.Funding.CycleHours[venue] <= 0 {
			cfg.Funding.CycleHours[venue] = 8
		}
	}
	if cfg.Funding.NotionalUSD <= 0 {
		cfg.Funding.NotionalUSD = 1000
	}
	if cfg.Panel.Addr == "" {
		cfg.Panel.Addr = "127.0.0.1:8000"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "data/spreadwatch.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
