package cli

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/adapter/auth"
	"github.com/rl1809/cartsync/internal/adapter/gateway"
	"github.com/rl1809/cartsync/internal/adapter/storage"
	"github.com/rl1809/cartsync/internal/core/service"
	"github.com/rl1809/cartsync/internal/port"
)

// openSession builds a CartStore for one command run. The backup lives in
// memory: a CLI invocation has nothing to restore across reloads.
func openSession(opts *RootOptions) (*service.CartStore, *zap.Logger, error) {
	logger := opts.logger()

	var tokens port.TokenSource
	switch {
	case opts.TokenFile != "":
		tokens = auth.NewFileToken(opts.TokenFile)
	case opts.Token != "":
		tokens = auth.StaticToken(opts.Token)
	}

	gw, err := gateway.NewHTTPGateway(opts.APIURL, gateway.Options{
		Timeout: opts.Timeout,
		Tokens:  tokens,
	})
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	backup := service.NewBackup(storage.NewMemoryAdapter(), service.DefaultBackupKey, logger)
	store := service.NewCartStore(gw, backup, service.NewNotificationSink(service.DefaultNotificationTTL), logger)
	return store, logger, nil
}

// operationError turns an engine failure into the short message the user sees.
func operationError(err error) error {
	return WrapExitError(ExitFailure, service.UserMessage(err), err)
}

func parseQuantity(raw string) (int, error) {
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", raw))
	}
	return q, nil
}
