package app

import (
	"context"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	aqmevents "github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/tablevox/tablevox/internal/mongo"
	"github.com/tablevox/tablevox/internal/voice"
	"github.com/tablevox/tablevox/internal/ws"
	"github.com/tablevox/tablevox/pkg"
	"github.com/tablevox/tablevox/pkg/event"
)

const (
	AppName    = "voice"
	AppVersion = "0.1.0"
)

// App encapsulates the voice dispatch service application.
type App struct {
	config   *aqm.Config
	logger   aqm.Logger
	micro    *aqm.Micro
	baseRepo *mongo.BaseRepo
}

func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components.
func (a *App) Initialize(ctx context.Context) error {
	var lifecycles []interface{}

	// Incomplete-command store: Mongo when configured, in-memory otherwise.
	var contexts voice.ContextRepo
	mongoURL, _ := a.config.GetString("db.mongo.url")
	if mongoURL != "" {
		a.baseRepo = mongo.NewBaseRepo(a.config, a.logger)
		if err := a.baseRepo.Start(ctx); err != nil {
			return err
		}
		contexts = mongo.NewContextRepo(a.baseRepo.GetDatabase())
		lifecycles = append(lifecycles, aqm.LifecycleHooks{OnStop: a.baseRepo.Stop})
	} else {
		a.logger.Info("no mongo configured, incomplete commands held in memory")
		contexts = voice.NewMemoryContextRepo()
	}

	natsURL := a.config.GetStringOrDef("nats.url", "nats://localhost:4222")

	// Command signals optionally ride a persistent stream so screens can
	// replay what they missed while reconnecting.
	var publisher aqmevents.Publisher
	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		stream, err := pkg.NewNATSStream(pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "VOICE_COMMANDS",
			Topic:        event.CommandsTopic,
			ConsumerName: "voice-dispatcher",
			MaxAge:       24 * time.Hour,
		})
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for command signals")
		publisher = stream
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return stream.Close() },
		})
	} else {
		pub, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		publisher = pub
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return pub.Close() },
		})
	}

	subscriber, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return subscriber.Close() },
	})

	// Classifier: external NLU service when configured, rule router otherwise.
	var classifier voice.Classifier
	classifierURL, _ := a.config.GetString("services.classifier.url")
	if classifierURL != "" {
		classifier = voice.NewHTTPClassifier(aqm.NewServiceClient(classifierURL), a.logger)
	} else {
		a.logger.Info("no classifier service configured, using rule classifier")
		classifier = voice.NewRuleClassifier(a.logger)
	}

	// Advisory table-state cache, warmed from the table service and kept
	// current from table status events.
	var tables *voice.TableStateCache
	tableURL, _ := a.config.GetString("services.table.url")
	if tableURL != "" {
		tables = voice.NewTableStateCache(aqm.NewServiceClient(tableURL), a.logger)
		lifecycles = append(lifecycles, voice.NewTableStatusSubscriber(subscriber, tables, a.logger))
	}

	deps := voice.DispatcherDeps{
		Classifier: classifier,
		Contexts:   contexts,
		Signals:    voice.NewSignalEmitter(publisher, a.logger),
		Notifier:   voice.NewNotifier(publisher, a.logger),
		Tables:     tables,
	}

	opts := voice.Options{
		GateTableOps:  a.config.GetStringOrDef("voice.gating.tableops", "false") == "true",
		ErrorRecovery: a.durationConfig("voice.error.recovery.ms"),
		SettleDelay:   a.durationConfig("voice.navigation.settle.ms"),
	}

	sessions := voice.NewSessionRegistry(deps, opts, a.logger)
	handler := voice.NewHandler(sessions, a.config, a.logger)
	bridge := ws.NewBridge(sessions, subscriber, a.logger)
	lifecycles = append(lifecycles, bridge)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: false, // Screens connect from the browser.
	})

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler, bridge),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// durationConfig reads a millisecond config value; zero keeps the dispatcher
// default.
func (a *App) durationConfig(key string) time.Duration {
	raw, _ := a.config.GetString(key)
	if raw == "" {
		return 0
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		a.logger.Info("invalid duration config, using default", "key", key, "value", raw)
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Run starts the application.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
