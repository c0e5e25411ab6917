package simulate_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/poio911/futbol-app-pwa-sub004/internal/app"
	"github.com/poio911/futbol-app-pwa-sub004/internal/config"
	"github.com/poio911/futbol-app-pwa-sub004/internal/simulate"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

func init() {
	if err := logger.InitWith(new(bytes.Buffer), "text"); err != nil {
		panic(err)
	}
}

func startService(jwtSecret string) (*httptest.Server, func()) {
	ctx := context.Background()
	cfg := config.New()
	cfg.Evaluation.SweepInterval = 0
	cfg.HTTP.JWTSecret = jwtSecret
	cfg.HTTP.SubmitRate = 1000
	cfg.HTTP.SubmitBurst = 1000
	svc, err := service.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	srv := httptest.NewServer(svc.Handler())
	return srv, func() {
		srv.Close()
		_ = svc.Stop(ctx)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, stop := startService("")
		defer stop()

		cfg := &simulate.Config{
			BaseURL:         srv.URL,
			Groups:          2,
			PlayersPerGroup: 10,
			Format:          "5v5",
			Workers:         4,
			Timeout:         5 * time.Second,
			Seed:            42,
		}

		Convey("A full simulation applies every group's ratings", func() {
			stats, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.PlayersCreated, ShouldEqual, 20)
			So(stats.DuplicateAcks, ShouldEqual, 2)
			So(stats.MatchesCompleted, ShouldEqual, 2)
			So(stats.Submissions+stats.SubmissionsFailed, ShouldEqual, 20)
			So(stats.Submissions, ShouldBeGreaterThanOrEqualTo, 16)
			So(stats.Recalculations, ShouldEqual, 2)
			So(stats.HistoryEntries, ShouldBeGreaterThan, 0)
			So(stats.RankingsRetrieved, ShouldEqual, 2)
		})

		Convey("A roster too small for the format fails", func() {
			cfg.PlayersPerGroup = 6
			_, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "balance teams")
		})
	})

	Convey("Given a service verifying tokens", t, func() {
		srv, stop := startService("sim-secret")
		defer stop()

		cfg := &simulate.Config{
			BaseURL:         srv.URL,
			Groups:          1,
			PlayersPerGroup: 6,
			Format:          "3v3",
			Workers:         2,
			Timeout:         5 * time.Second,
			Seed:            7,
		}

		Convey("Signed tokens are accepted", func() {
			cfg.JWTSecret = "sim-secret"
			stats, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.MatchesCompleted, ShouldEqual, 1)
			So(stats.HistoryEntries, ShouldBeGreaterThan, 0)
		})

		Convey("Identity headers alone are refused", func() {
			_, err := simulate.Run(context.Background(), cfg)
			var se *simulate.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Status, ShouldEqual, 401)
		})
	})

	Convey("An incomplete config is rejected", t, func() {
		_, err := simulate.Run(context.Background(), &simulate.Config{})
		So(errors.Is(err, simulate.ErrInvalidConfig), ShouldBeTrue)
	})
}
