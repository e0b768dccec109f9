// Command catalog runs the bookstore schema-pattern migrations against a configured
// document store.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/asaidimu/go-bookstore/config"
	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/patterns"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries the state shared by every subcommand once the root command has run its
// persistent pre-run.
type app struct {
	configFile string
	envFile    string
	jsonOutput bool

	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	service *persistence.Persistence
	catalog *patterns.Catalog
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "catalog",
		Short: "Restructure the bookstore catalog with schema-design patterns",
		Long: `catalog seeds a sample bookstore and applies three schema-design patterns to it:
subtype unification of products, an extended reference from reviews to products,
and computed rollups over both collections.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./catalog.yaml when present)")
	flags.StringVar(&a.envFile, "env-file", "", "env file (default: ./.env when present)")
	flags.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	flags.String("backend", "", "document store: memory, sqlite or mongo (memory is discarded when the command exits)")
	flags.String("db", "", "sqlite database path")
	_ = a.v.BindPFlag(config.KeyBackend, flags.Lookup("backend"))
	_ = a.v.BindPFlag(config.KeySQLitePath, flags.Lookup("db"))

	root.AddCommand(
		newSeedCmd(a),
		newNormalizeCmd(a),
		newEmbedReviewsCmd(a),
		newRollupCmd(a),
		newShowCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	if err := config.ReadFile(a.v, a.configFile); err != nil {
		return err
	}
	cfg, err := config.Decode(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.logger = logger.With(zap.String("backend", cfg.Backend))

	interactor, err := openStore(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}
	service, err := persistence.NewPersistence(interactor, a.logger.Named("persistence"))
	if err != nil {
		_ = interactor.Close(context.Background())
		return err
	}
	a.service = service
	a.watchUpdates()

	catalog, err := patterns.NewCatalog(service, patterns.Collections{
		Products: cfg.Collections.Products,
		Reviews:  cfg.Collections.Reviews,
	}, a.logger)
	if err != nil {
		return err
	}
	a.catalog = catalog
	return nil
}

// watchUpdates logs every failed or successful document update at debug level.
func (a *app) watchUpdates() {
	label := "update-log"
	for _, event := range []persistence.PersistenceEventType{persistence.DocumentUpdateSuccess, persistence.DocumentUpdateFailed} {
		a.service.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event: event,
			Label: &label,
			Callback: func(ctx context.Context, e persistence.PersistenceEvent) error {
				fields := []zap.Field{zap.String("event", string(e.Type)), zap.Any("query", e.Query)}
				if e.Collection != nil {
					fields = append(fields, zap.String("collection", *e.Collection))
				}
				if e.Duration != nil {
					fields = append(fields, zap.Int64("durationMs", *e.Duration))
				}
				if e.Error != nil {
					fields = append(fields, zap.String("error", *e.Error))
				}
				a.logger.Debug("Document update", fields...)
				return nil
			},
		})
	}
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.service == nil {
		return nil
	}
	subs, _ := a.service.Subscriptions()
	for _, s := range subs {
		a.service.UnregisterSubscription(s.ID)
	}
	err := a.service.Close(context.Background())
	_ = a.logger.Sync()
	return err
}

// collectionArg resolves the products|reviews argument to a configured collection name.
func (a *app) collectionArg(arg string) (string, error) {
	switch strings.ToLower(arg) {
	case "products", a.cfg.Collections.Products:
		return a.cfg.Collections.Products, nil
	case "reviews", a.cfg.Collections.Reviews:
		return a.cfg.Collections.Reviews, nil
	}
	return "", fmt.Errorf("unknown collection %q: expected products or reviews", arg)
}
