package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/shandysiswandi/goledger/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goledger/internal/pkg/pkglog"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goledger/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	snowflake pkguid.NumberID
	goroutine *pkgroutine.Manager

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

// New builds the HTTP server application. Logs go to stdout as JSON.
func New() *App {
	pkglog.InitLogging(os.Stdout, slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	pkglog.InitLogging(os.Stdout, pkglog.ParseLevel(app.config.GetString("log.level")))
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
