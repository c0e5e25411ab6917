package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/config"
)

var configEnvVars = []string{
	"FUTBOL_CONFIG",
	"FUTBOL_DOTENV",
	"FUTBOL_ADDR",
	"FUTBOL_LANGUAGE",
	"FUTBOL_STORE__DRIVER",
	"FUTBOL_STORE__DSN",
	"FUTBOL_EVALUATION__THRESHOLD",
	"FUTBOL_EVALUATION__DEADLINE",
	"FUTBOL_HTTP__CORS_ORIGINS",
	"FUTBOL_OFFLINE__WORKERS",
	"FUTBOL_PHOTOS__BUCKET",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
				convey.So(cfg.Offline.Workers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When nested keys come from the environment", func() {
			_ = os.Setenv("FUTBOL_ADDR", ":8080")
			_ = os.Setenv("FUTBOL_STORE__DRIVER", "sqlite")
			_ = os.Setenv("FUTBOL_STORE__DSN", "file:futbol.db")
			_ = os.Setenv("FUTBOL_EVALUATION__THRESHOLD", "0.5")
			_ = os.Setenv("FUTBOL_EVALUATION__DEADLINE", "48h")
			_ = os.Setenv("FUTBOL_HTTP__CORS_ORIGINS", "https://a.example,https://b.example")
			_ = os.Setenv("FUTBOL_OFFLINE__WORKERS", "4")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "file:futbol.db")
				convey.So(cfg.Evaluation.Threshold, convey.ShouldEqual, 0.5)
				convey.So(cfg.Evaluation.Deadline, convey.ShouldEqual, 48*time.Hour)
				convey.So(cfg.HTTP.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
				convey.So(cfg.Offline.Workers, convey.ShouldEqual, 4)
				convey.So(cfg.Evaluation.TargetsPerEvaluator, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeTemp(t, "futbol.yaml", `
addr: ":9090"
language: es
evaluation:
  threshold: 0.6
  sweep_interval: 30s
notify:
  discord_channels:
    g1: "123"
`)
			_ = os.Setenv("FUTBOL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the file values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Language, convey.ShouldEqual, "es")
				convey.So(cfg.Evaluation.Threshold, convey.ShouldEqual, 0.6)
				convey.So(cfg.Evaluation.SweepInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Evaluation.Deadline, convey.ShouldEqual, 72*time.Hour)
				convey.So(cfg.Notify.DiscordChannels["g1"], convey.ShouldEqual, "123")
			})

			convey.Convey("And env vars take precedence over the file", func() {
				_ = os.Setenv("FUTBOL_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Language, convey.ShouldEqual, "es")
			})
		})

		convey.Convey("When a dotenv file is named", func() {
			path := writeTemp(t, "test.env", "FUTBOL_PHOTOS__BUCKET=player-photos\n")
			_ = os.Setenv("FUTBOL_DOTENV", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables are loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Photos.Bucket, convey.ShouldEqual, "player-photos")
			})
		})

		convey.Convey("When a named dotenv file is missing", func() {
			_ = os.Setenv("FUTBOL_DOTENV", filepath.Join(t.TempDir(), "missing.env"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("FUTBOL_CONFIG", "/nonexistent/futbol.yaml")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When validation fails", func() {
			cases := map[string]string{
				"FUTBOL_ADDR":                  "",
				"FUTBOL_EVALUATION__THRESHOLD": "1.5",
				"FUTBOL_STORE__DRIVER":         "mongo",
			}
			for k, v := range cases {
				clearConfigEnvVars()
				_ = os.Setenv(k, v)
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}

			clearConfigEnvVars()
			_ = os.Setenv("FUTBOL_STORE__DRIVER", "postgres")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
