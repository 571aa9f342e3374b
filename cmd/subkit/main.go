package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/subkit/subkit/modules/billing"
	"github.com/subkit/subkit/pkg/config"
	"github.com/subkit/subkit/pkg/email"
	"github.com/subkit/subkit/pkg/httpserver"
	"github.com/subkit/subkit/pkg/logger"
	"github.com/subkit/subkit/pkg/pg"
	"github.com/subkit/subkit/pkg/redis"
	"github.com/subkit/subkit/pkg/subscription"
)

type appConfig struct {
	LogLevel  slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat logger.Format `env:"LOG_FORMAT" envDefault:"json"`

	// PlansFile is the YAML plan catalog the pricing page serves.
	PlansFile string `env:"PLANS_FILE" envDefault:"plans.yml"`
	SignUpURL string `env:"SIGN_UP_URL" envDefault:"/sign_up"`

	// DiscountCacheEnabled turns on the Redis-backed coupon cache.
	DiscountCacheEnabled bool `env:"DISCOUNT_CACHE_ENABLED" envDefault:"false"`

	// PortalEnabled turns on hosted payment-method update links.
	PortalEnabled bool `env:"PORTAL_ENABLED" envDefault:"false"`
}

func main() {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithLevel(appCfg.LogLevel),
		logger.WithFormat(appCfg.LogFormat),
		logger.WithAttr(slog.String("service", "subkit")),
	)
	slog.SetDefault(log)

	if err := run(ctx, appCfg, log); err != nil {
		log.Error("service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	plans, err := subscription.LoadPlansFile(appCfg.PlansFile)
	if err != nil {
		return err
	}

	var subCfg subscription.Config
	config.MustLoad(&subCfg)
	subs := subscription.NewPGSubscriptionStore(pool, subCfg)

	var stripeCfg subscription.StripeConfig
	config.MustLoad(&stripeCfg)
	gateway, err := subscription.NewStripeGateway(stripeCfg)
	if err != nil {
		return err
	}

	identity := headerIdentity{}
	opts := []subscription.ServiceOption{
		subscription.WithLogger(log),
		subscription.WithIdentityProvider(identity),
		subscription.WithNotifier(subscription.NewEmailNotifier(newSender(log))),
	}

	readiness := []func(context.Context) error{pg.Healthcheck(pool)}
	if appCfg.DiscountCacheEnabled {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		rdb, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		opts = append(opts, subscription.WithDiscountSource(
			subscription.NewCachedDiscounts(gateway, rdb, 0, log)))
		readiness = append(readiness, redis.Healthcheck(rdb))
	}

	svc := subscription.NewService(subCfg, plans, subs, gateway, opts...)

	var portal subscription.PortalLinker
	if appCfg.PortalEnabled {
		var paddleCfg subscription.PaddleConfig
		config.MustLoad(&paddleCfg)
		portal, err = subscription.NewPaddlePortal(paddleCfg)
		if err != nil {
			return err
		}
	}

	module := billing.New(billing.Options{
		Service:   svc,
		Guard:     subscription.NewGuard(subs),
		Identity:  identity,
		Portal:    portal,
		SignUpURL: appCfg.SignUpURL,
		Logger:    log,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(identity.middleware)
	r.Get("/healthz", httpserver.Healthcheck(log))
	r.Get("/readyz", httpserver.Healthcheck(log, readiness...))
	r.Mount("/", module.Router())

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)
	return httpserver.New(srvCfg, log).Run(ctx, r)
}

// newSender picks Postmark when its tokens are configured, otherwise the
// log sender so local runs need no mail credentials.
func newSender(log *slog.Logger) email.Sender {
	var cfg email.Config
	config.MustLoad(&cfg)
	if cfg.PostmarkServerToken == "" {
		return email.NewLogSender(log)
	}
	sender, err := email.NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return sender
}

type principalKey struct{}

// headerIdentity trusts the authenticating reverse proxy to inject the
// signed-in user through X-User-ID and X-User-Email headers. Embedding
// applications with their own sessions supply their own provider instead.
type headerIdentity struct{}

func (headerIdentity) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get("X-User-ID"))); err == nil {
			principal := &subscription.Principal{
				ID:    id,
				Email: strings.TrimSpace(r.Header.Get("X-User-Email")),
			}
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, principal))
		}
		next.ServeHTTP(w, r)
	})
}

func (headerIdentity) CurrentPrincipal(ctx context.Context) (*subscription.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*subscription.Principal)
	return principal, ok
}
