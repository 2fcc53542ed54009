package app

import (
	"context"
	"net/http"

	"gorm.io/gorm"

	"roommates-app-go/internal/config"
	"roommates-app-go/internal/db"
	groupsdomain "roommates-app-go/internal/domain/groups"
	notificationsdomain "roommates-app-go/internal/domain/notifications"
	requestsdomain "roommates-app-go/internal/domain/requests"
	usersdomain "roommates-app-go/internal/domain/users"
	"roommates-app-go/internal/jobs"
	"roommates-app-go/internal/metrics"
	"roommates-app-go/internal/repository/inmemory"
	groupsrepo "roommates-app-go/internal/repository/postgres/groups"
	notificationsrepo "roommates-app-go/internal/repository/postgres/notifications"
	requestsrepo "roommates-app-go/internal/repository/postgres/requests"
	usersrepo "roommates-app-go/internal/repository/postgres/users"
	"roommates-app-go/internal/transport/httpserver"
	"roommates-app-go/internal/transport/httpserver/handler"
	"roommates-app-go/pkg/logger"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
	scheduler  *jobs.Scheduler
	log        logger.Logger
}

type stores struct {
	groups        groupsdomain.Repository
	locker        groupsdomain.Locker
	requests      requestsdomain.Repository
	notifications notificationsdomain.Repository
	users         usersdomain.Repository
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log}

	s, err := a.openStores()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	log.Info("app: initializing services")
	var notificationRecorder notificationsdomain.Recorder
	groupOpts := []groupsdomain.Option{
		groupsdomain.WithLocker(s.locker),
		groupsdomain.WithCache(inmemory.NewGroupsCache(), cfg.Groups.CacheTTL),
	}
	requestOpts := []requestsdomain.Option{}
	if m != nil {
		notificationRecorder = m
		groupOpts = append(groupOpts, groupsdomain.WithRecorder(m))
		requestOpts = append(requestOpts, requestsdomain.WithRecorder(m))
	}

	users := usersdomain.NewService(s.users)
	notifications := notificationsdomain.NewService(s.notifications, notificationRecorder)
	groups := groupsdomain.NewService(s.groups, notifications, log.With("component", "groups"), groupOpts...)
	requestOpts = append(requestOpts, requestsdomain.WithProfiles(users))
	requests := requestsdomain.NewService(s.requests, groups, notifications, log.With("component", "requests"), requestOpts...)

	if cfg.Sweep.Enabled {
		scheduler, err := jobs.NewScheduler(groups, cfg.Sweep, log.With("component", "jobs"))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.scheduler = scheduler
	}

	log.Info("app: initializing router")
	handlers := handler.New(requests, groups, notifications, log)
	router := httpserver.NewRouter(cfg, handlers, users, m, log)

	log.Info("app: initializing http server")
	a.httpServer = httpserver.New(cfg, router)
	return a, nil
}

func (a *App) openStores() (*stores, error) {
	if a.cfg.StoreDriver == config.StoreDriverMemory {
		a.log.Warn("app: using in-memory store, data is lost on restart")
		return &stores{
			groups:        inmemory.NewGroupsRepository(),
			locker:        inmemory.NewLocker(),
			requests:      inmemory.NewRequestsRepository(),
			notifications: inmemory.NewNotificationsRepository(),
			users:         inmemory.NewUsersRepository(),
		}, nil
	}

	a.log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(a.cfg.DB, a.log)
	if err != nil {
		return nil, err
	}
	a.db = dbConn

	if err := db.Migrate(dbConn, a.log); err != nil {
		return nil, err
	}

	return &stores{
		groups:        groupsrepo.NewPostgres(dbConn),
		locker:        groupsrepo.NewAdvisoryLocker(dbConn, a.log),
		requests:      requestsrepo.NewPostgres(dbConn),
		notifications: notificationsrepo.NewPostgres(dbConn),
		users:         usersrepo.NewPostgres(dbConn),
	}, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// StartJobs starts background jobs. It is a no-op when the sweeper is disabled.
func (a *App) StartJobs() {
	if a.scheduler == nil {
		return
	}
	a.scheduler.Start()
}

func (a *App) StopJobs(ctx context.Context) {
	if a.scheduler == nil {
		return
	}
	a.scheduler.Stop(ctx)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
