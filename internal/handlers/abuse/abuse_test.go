package abuse

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	fw "github.com/charleshuang3/firewall"
	"github.com/charleshuang3/firewall/ipgeo"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "simple",
			config: Config{
				Provider:          "ros",
				ProviderIP:        "192.168.1.1",
				ProviderUser:      "admin",
				ProviderPassword:  "password",
				CityDBFile:        "/path/to/city.mmdb",
				UpdatedCityDBFile: "/path/to/updated_city.mmdb",
				ASNDBFile:         "/path/to/asn.mmdb",
				UpdatedASNDBFile:  "/path/to/updated_asn.mmdb",
			},
		},
		{
			name: "full",
			config: Config{
				Provider:         "ros",
				ProviderIP:       "192.168.1.1",
				ProviderUser:     "admin",
				ProviderPassword: "password",
				ListUUID:         "12345",
				Whitelist:        []string{"192.168.1.1", "192.168.1.2"},
				BanMinutes:       10,
				Tolerance: Tolerance{
					DurationInMinute: 10,
					Count:            3,
				},

				CityDBFile:        "/path/to/city.mmdb",
				UpdatedCityDBFile: "/path/to/updated_city.mmdb",
				ASNDBFile:         "/path/to/asn.mmdb",
				UpdatedASNDBFile:  "/path/to/updated_asn.mmdb",

				GoogleKeyFile:   "/path/to/key.json",
				GoogleProjectID: "project-id",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Validate()
		})
	}
}

func TestConfig_ApplyDefault(t *testing.T) {
	config := Config{}
	config.applyDefault()

	assert.Equal(t, uint(defaultBanMinutes), config.BanMinutes)
	assert.Equal(t, uint(defaultDurationInMinute), config.Tolerance.DurationInMinute)
	assert.Equal(t, uint(defaultCount), config.Tolerance.Count)
}

// mockILogger records firewall actions for assertions.
type mockILogger struct {
	logs []logEntry
	wg   sync.WaitGroup
}

type logEntry struct {
	IP     string
	action string
}

func (m *mockILogger) Log(ip string, jailUntil time.Time, reasons []string, action string, geo *ipgeo.IPGeo) {
	m.logs = append(m.logs, logEntry{
		IP:     ip,
		action: action,
	})
	m.wg.Done()
}

func setupTestGuard(t *testing.T) (*Guard, *mockILogger) {
	t.Helper()
	config := &Config{
		BanMinutes: 10,
	}
	logger := &mockILogger{}
	guard := &Guard{
		fw: fw.New([]string{}, nil, logger, nil, fw.ForgivableError{
			Duration:    time.Minute,
			Count:       3,
			BanInMinute: int(config.BanMinutes),
		}),
		conf: config,
	}
	return guard, logger
}

func setupTestGuardForMiddleware(t *testing.T) (*Guard, *mockILogger, *gin.Engine) {
	t.Helper()

	guard, logger := setupTestGuard(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	testGroup := router.Group("/")
	testGroup.Use(guard.Middleware())
	testGroup.GET("/ok", func(c *gin.Context) {})
	testGroup.GET("/flagged", func(c *gin.Context) {
		c.Set(KeyFlag, "token probing")
	})
	testGroup.GET("/404", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	testGroup.GET("/500", func(c *gin.Context) {
		// server problem, not the caller's fault
		c.Status(http.StatusInternalServerError)
	})

	return guard, logger, router
}

func TestMiddleware_NoAction(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{
			name: "no error",
			path: "/ok",
		},
		{
			name: "500",
			path: "/500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, logger, router := setupTestGuardForMiddleware(t)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)

			router.ServeHTTP(rec, req)

			// give some time if go func run.
			time.Sleep(time.Millisecond * 100)

			assert.Len(t, logger.logs, 0)
		})
	}
}

func TestMiddleware_Flagged(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{
			name: "404",
			path: "/404",
		},
		{
			name: "handler flag",
			path: "/flagged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, logger, router := setupTestGuardForMiddleware(t)
			logger.wg.Add(1)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)

			router.ServeHTTP(rec, req)

			logger.wg.Wait()

			assert.Len(t, logger.logs, 1)
			assert.Equal(t, logger.logs[0].action, "count error")
		})
	}
}
