package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/temporal/internal/cache"
	"github.com/verte-zerg/temporal/internal/calendar"
	"github.com/verte-zerg/temporal/internal/realtime"
	"github.com/verte-zerg/temporal/internal/server"
	"github.com/verte-zerg/temporal/internal/service"
	"github.com/verte-zerg/temporal/internal/store"
)

var datesThrough string

// backend bundles the server-side components shared by serve, build, show
// and dates.
type backend struct {
	logger  *zap.Logger
	rdb     *redis.Client
	mock    *cache.MockClient
	cache   *cache.CalendarCache
	store   *store.Store
	service *service.WeekService
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&opts.startYear, "start-year", opts.startYear, "first calendar year")
	cmd.Flags().IntVar(&opts.endYear, "end-year", opts.endYear, "last calendar year")
	cmd.Flags().StringVar(&opts.dbPath, "db", opts.dbPath, "temporal dates database (default: XDG data dir)")
}

// openBackend wires the calendar service. withStore opens the SQLite
// Temporal Dates table as well. With --offline the calendar lives in
// memory and no realtime events are published.
func openBackend(cmd *cobra.Command, withStore bool) (*backend, error) {
	if err := loadSettings(cmd); err != nil {
		return nil, err
	}
	logger, err := newStderrLogger()
	if err != nil {
		return nil, err
	}
	builder, err := calendar.NewBuilder(opts.startYear, opts.endYear, "SUN")
	if err != nil {
		return nil, err
	}

	b := &backend{logger: logger}
	var pub service.Publisher
	if opts.offline {
		b.mock = cache.NewMockClient()
		b.cache = cache.NewCalendarCache(b.mock)
	} else {
		b.rdb = cache.Dial(opts.redisAddr, opts.redisPassword, opts.redisDB)
		b.cache = cache.NewCalendarCache(cache.NewRedisClient(b.rdb))
		pub = realtime.NewBus(b.rdb, opts.redisChannel, logger.Named("realtime"))
	}

	var dates service.Dates
	if withStore {
		st, err := store.Open(opts.dbPath)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		b.store = st
		dates = st
	}
	b.service = service.NewWeekService(b.cache, builder, pub, dates, logger.Named("service"))
	return b, nil
}

func (b *backend) close() {
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			logErrf("failed to close db: %v\n", err)
		}
	}
	if b.rdb != nil {
		if err := b.rdb.Close(); err != nil {
			logErrf("failed to close redis client: %v\n", err)
		}
	}
	syncLogger(b.logger)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar procedures over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&opts.listen, "listen", opts.listen, "listen address")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "keep the calendar in memory instead of Redis")
	addRangeFlags(cmd)
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	b, err := openBackend(cmd, true)
	if err != nil {
		return err
	}
	defer b.close()

	muxRouter := mux.NewRouter()
	handler := server.NewProcedureHandler(b.service, b.logger.Named("procedures"))
	router := server.NewRouter(handler, muxRouter, b.logger.Named("router"))
	srv := server.NewHTTPServer(router, muxRouter, opts.listen, b.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		// A cold cache is also rebuilt on the first miss.
		if err := b.cache.Ping(gctx); err != nil {
			b.logger.Warn("redis unavailable, skipping initial build", zap.Error(err))
			return nil
		}
		if err := b.service.Rebuild(gctx); err != nil {
			b.logger.Warn("initial calendar build failed", zap.Error(err))
			return nil
		}
		if b.mock != nil {
			b.logger.Info("serving offline calendar", zap.Int("keys", b.mock.Keys()))
		}
		return nil
	})
	return g.Wait()
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the calendar in Redis",
		Args:  cobra.NoArgs,
		RunE:  runBuildCmd,
	}
	addRangeFlags(cmd)
	return cmd
}

func runBuildCmd(cmd *cobra.Command, _ []string) error {
	b, err := openBackend(cmd, false)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.service.Rebuild(cmd.Context()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "calendar built for %d-%d\n", opts.startYear, opts.endYear)
	return err
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Ask the sessions of --user to open the week dialog",
		Args:  cobra.NoArgs,
		RunE:  runShowCmd,
	}
}

func runShowCmd(cmd *cobra.Command, _ []string) error {
	b, err := openBackend(cmd, false)
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := b.service.ShowWeeks(ctx, opts.user); err != nil {
		return fmt.Errorf("failed to publish %q: %w", realtime.EventShowWeeks, err)
	}
	return nil
}

func newDatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Manage the Temporal Dates table",
	}

	populate := &cobra.Command{
		Use:   "populate",
		Short: "Insert calendar dates and fill in missing week numbers",
		Args:  cobra.NoArgs,
		RunE:  runDatesPopulateCmd,
	}
	addRangeFlags(populate)
	populate.Flags().StringVar(&datesThrough, "through", "", "fill week numbers up to this date (YYYY-MM-DD, default: today)")

	scalar := &cobra.Command{
		Use:   "scalar DATE",
		Short: "Print the scalar value of a date",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatesScalarCmd,
	}
	addRangeFlags(scalar)

	week := &cobra.Command{
		Use:   "week DATE",
		Short: "Print the stored week of a date",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatesWeekCmd,
	}
	addRangeFlags(week)

	cmd.AddCommand(populate, scalar, week)
	return cmd
}

func runDatesPopulateCmd(cmd *cobra.Command, _ []string) error {
	through := time.Now().UTC()
	if datesThrough != "" {
		parsed, err := calendar.ParseDate(datesThrough)
		if err != nil {
			return fmt.Errorf("invalid --through value: %w", err)
		}
		through = parsed
	}

	b, err := openBackend(cmd, true)
	if err != nil {
		return err
	}
	defer b.close()

	inserted, updated, err := b.service.PopulateDates(cmd.Context(), through)
	if err != nil {
		return err
	}
	missing, err := b.store.MissingWeekNumbers(cmd.Context(), through)
	if err != nil {
		return fmt.Errorf("failed to count missing week numbers: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d dates, updated %d week numbers, %d still missing through %s\n",
		inserted, updated, missing, through.Format(calendar.DateLayout))
	return err
}

func runDatesScalarCmd(cmd *cobra.Command, args []string) error {
	d, err := calendar.ParseDate(args[0])
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", args[0], err)
	}

	b, err := openBackend(cmd, true)
	if err != nil {
		return err
	}
	defer b.close()

	v, err := b.service.DateToScalar(cmd.Context(), d)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
	return err
}

func runDatesWeekCmd(cmd *cobra.Command, args []string) error {
	d, err := calendar.ParseDate(args[0])
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", args[0], err)
	}

	b, err := openBackend(cmd, true)
	if err != nil {
		return err
	}
	defer b.close()

	td, err := b.store.WeekOf(cmd.Context(), d)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", args[0], err)
	}
	if td.WeekNumber == 0 {
		return fmt.Errorf("%s has no week number yet, run dates populate", args[0])
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s scalar %d\n",
		td.CalendarDate.Format(calendar.DateLayout), cache.WeekID(td.WeekYear, td.WeekNumber), td.ScalarValue)
	return err
}
