package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"mdbed/internal/dblib"
)

// InitSentry initializes the Sentry client with the given DSN
func InitSentry(dsn string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      getEnvironment(),
		Release:          "mdbed@" + version,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

func getEnvironment() string {
	if os.Getenv("MDBED_ENV") == "dev" || version == "dev" {
		return "development"
	}
	return "production"
}

// FlushAndShutdown flushes pending Sentry events
func FlushAndShutdown() {
	sentry.Flush(5 * time.Second)
}

// CaptureError sends an error to Sentry along with pending breadcrumbs.
// Warnings about fallback keys are user information and never sent.
func CaptureError(err error) {
	if err == nil || breadcrumbs == nil {
		return
	}
	if dblib.KindOf(err) == dblib.IntegrityWarning {
		return
	}
	breadcrumbs.Flush()
	sentry.WithScope(func(scope *sentry.Scope) {
		if kind := dblib.KindOf(err); kind != 0 {
			scope.SetTag("kind", kind.String())
		}
		sentry.CaptureException(err)
	})
}
