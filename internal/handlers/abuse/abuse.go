// Package abuse wires the perimeter firewall: handlers flag suspicious
// requests through the gin context, the middleware turns repeated flags
// from one IP into a ban on the network firewall.
package abuse

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	fw "github.com/charleshuang3/firewall"
	"github.com/charleshuang3/firewall/gcplog"
	"github.com/charleshuang3/firewall/ipgeo"
	"github.com/charleshuang3/firewall/opn"
	"github.com/charleshuang3/firewall/pf"
	"github.com/charleshuang3/firewall/ros"
	"github.com/charleshuang3/firewall/zerolog"
)

var (
	logger = log.With().Str("component", "abuse").Logger()
)

// KeyFlag is the gin context key a handler sets to report a suspicious
// request. The value is the reason string.
const KeyFlag = "ABUSE_FLAG"

type Tolerance struct {
	DurationInMinute uint `yaml:"duration_in_minute"`
	Count            uint `yaml:"count"`
}

type Config struct {
	Provider         string    `yaml:"provider"`
	ProviderIP       string    `yaml:"provider_ip"`
	ProviderUser     string    `yaml:"provider_user"`
	ProviderPassword string    `yaml:"provider_password"`
	ListUUID         string    `yaml:"list_uuid"`
	BanMinutes       uint      `yaml:"ban_minutes"`
	Whitelist        []string  `yaml:"whitelist"`
	Tolerance        Tolerance `yaml:"tolerance"`

	CityDBFile        string `yaml:"city_db_file"`
	UpdatedCityDBFile string `yaml:"updated_city_db_file"`
	ASNDBFile         string `yaml:"asn_db_file"`
	UpdatedASNDBFile  string `yaml:"updated_asn_db_file"`

	GoogleKeyFile   string `yaml:"google_key_file"`
	GoogleProjectID string `yaml:"google_project_id"`
}

var (
	supportedProviders = []string{"none", "ros", "opn", "pf"}
)

const (
	defaultBanMinutes       = 10
	defaultDurationInMinute = 10
	defaultCount            = 3
)

func (c *Config) Validate() {
	if !slices.Contains(supportedProviders, c.Provider) {
		logger.Fatal().Msgf("Provider %s is not supported", c.Provider)
	}

	if c.Provider != "none" {
		if c.ProviderIP == "" {
			logger.Fatal().Msg("ProviderIP is missing")
		}

		if c.ProviderUser == "" {
			logger.Fatal().Msg("ProviderUser is missing")
		}

		if c.ProviderPassword == "" {
			logger.Fatal().Msg("ProviderPassword is missing")
		}

		if c.Provider == "opn" && c.ListUUID == "" {
			logger.Fatal().Msg("ListUUID is missing")
		}
	}

	if c.CityDBFile == "" {
		logger.Fatal().Msg("CityDBFile is missing")
	}

	if c.UpdatedCityDBFile == "" {
		logger.Fatal().Msg("UpdatedCityDBFile is missing")
	}

	if c.ASNDBFile == "" {
		logger.Fatal().Msg("ASNDBFile is missing")
	}

	if c.UpdatedASNDBFile == "" {
		logger.Fatal().Msg("UpdatedASNDBFile is missing")
	}

	c.applyDefault()
}

func (c *Config) applyDefault() {
	if c.BanMinutes == 0 {
		c.BanMinutes = defaultBanMinutes
	}

	if c.Tolerance.DurationInMinute == 0 {
		c.Tolerance.DurationInMinute = defaultDurationInMinute
	}

	if c.Tolerance.Count == 0 {
		c.Tolerance.Count = defaultCount
	}
}

type Guard struct {
	fw   *fw.Firewall
	conf *Config
}

func New(conf *Config) *Guard {
	var firewallProvider fw.IFirewall
	switch conf.Provider {
	case "ros":
		firewallProvider = ros.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword)
	case "pf":
		firewallProvider = pf.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword)
	case "opn":
		firewallProvider = opn.New(
			conf.ProviderIP, conf.ProviderUser, conf.ProviderPassword, conf.ListUUID)
	default:
		// nil provider: flags are still logged, nothing gets banned.
	}

	var fwlogger fw.ILogger
	if conf.GoogleKeyFile != "" {
		var err error
		fwlogger, err = gcplog.New(conf.GoogleKeyFile, conf.GoogleProjectID, "orgreq")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create gcp logger")
		}
	} else {
		// fallback to local log if no google key file.
		fwlogger = zerolog.New(logger, zlog.InfoLevel, "orgreq")
	}

	mm, err := ipgeo.NewAutoUpdateMMIPGeo(
		conf.CityDBFile,
		conf.UpdatedCityDBFile,
		conf.ASNDBFile,
		conf.UpdatedASNDBFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create abuse guard")
	}

	firewall := fw.New(
		conf.Whitelist,
		firewallProvider,
		fwlogger,
		mm,
		fw.ForgivableError{
			Duration:    time.Duration(conf.Tolerance.DurationInMinute) * time.Minute,
			Count:       int(conf.Tolerance.Count),
			BanInMinute: int(conf.BanMinutes),
		})

	return &Guard{
		fw:   firewall,
		conf: conf,
	}
}

// Middleware records abuse flags after the handler ran. Probing
// undefined routes counts too.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		reason, ok := c.Get(KeyFlag)
		if ok {
			g.fw.LogIPError(c.ClientIP(), reason.(string))
			return
		}

		if c.Writer.Status() == http.StatusNotFound {
			g.fw.LogIPError(c.ClientIP(), "undefined_url")
			return
		}
	}
}
