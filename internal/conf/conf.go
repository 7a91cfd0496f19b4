// Package conf holds the configuration tree scanned from configs/config.yaml.
package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of the configuration file.
type Bootstrap struct {
	Server     *Server     `json:"server"`
	Data       *Data       `json:"data"`
	Log        *Log        `json:"log"`
	Webhook    *Webhook    `json:"webhook"`
	Catalog    *Catalog    `json:"catalog"`
	Generation *Generation `json:"generation"`
	Search     *Search     `json:"search"`
	Cron       *Cron       `json:"cron"`
}

type Server struct {
	Http *Server_HTTP `json:"http"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
	// AllowedOrigins feeds the CORS filter; empty means "*".
	AllowedOrigins []string `json:"allowed_origins"`
}

type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_RocketMQ `json:"rocketmq"`
}

type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
	BalanceTtl   *Duration `json:"balance_ttl"`
}

type Data_RocketMQ struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int32    `json:"retry_times"`
}

type Log struct {
	Level         string `json:"level"`
	Format        string `json:"format"`
	Output        string `json:"output"`
	FilePath      string `json:"file_path"`
	MaxSize       int    `json:"max_size"`
	MaxAge        int    `json:"max_age"`
	MaxBackups    int    `json:"max_backups"`
	Compress      bool   `json:"compress"`
	EnableConsole bool   `json:"enable_console"`
}

type Webhook struct {
	Secret string `json:"secret"`
}

// Catalog maps billing-provider product ids to credit grants.
type Catalog struct {
	Products map[string]*Catalog_Product `json:"products"`
}

type Catalog_Product struct {
	Credits int64 `json:"credits"`
	// Kind is "pack" or "subscription". Empty falls back to the product id.
	Kind string `json:"kind"`
}

type Generation struct {
	ApiKey string `json:"api_key"`
	// BaseUrl overrides the Gemini API endpoint.
	BaseUrl         string    `json:"base_url"`
	DefaultModel    string    `json:"default_model"`
	DefaultCost     int64     `json:"default_cost"`
	Timeout         *Duration `json:"timeout"`
	RefundOnFailure bool      `json:"refund_on_failure"`
	// IdentifyModel is the text model used by /v1/identify.
	IdentifyModel string `json:"identify_model"`
}

// Search configures Google Custom Search for identify results.
// Empty ApiKey or EngineId disables the lookup.
type Search struct {
	ApiKey   string `json:"api_key"`
	EngineId string `json:"engine_id"`
	BaseUrl  string `json:"base_url"`
}

type Cron struct {
	PurgeSpec      string    `json:"purge_spec"`
	EventRetention *Duration `json:"event_retention"`
	LockTtl        *Duration `json:"lock_ttl"`
}

// Duration accepts "300ms"/"1.5s" strings or plain seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// AsDuration returns zero for a nil receiver.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}
