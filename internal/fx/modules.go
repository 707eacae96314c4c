package fx

import (
	"context"

	"raidrecord/internal/api"
	"raidrecord/internal/config"
	"raidrecord/internal/database"
	"raidrecord/internal/logger"
	"raidrecord/internal/refdata"
	"raidrecord/internal/repository"
	"raidrecord/internal/server"
	"raidrecord/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideClient builds the API client with credentials from the
// environment when set, otherwise from previously saved settings.
func ProvideClient(
	budget *api.BudgetTracker,
	tokens *repository.TokenRepository,
	settings *repository.SettingsRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *api.Client {
	client := api.NewClient(budget, tokens, log)

	clientID, clientSecret := cfg.ClientID, cfg.ClientSecret
	if clientID == "" || clientSecret == "" {
		storedID, storedSecret, err := settings.Credentials(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("failed to load stored credentials")
		} else if storedID != "" {
			clientID, clientSecret = storedID, storedSecret
		}
	}
	if clientID != "" && clientSecret != "" {
		client.SetCredentials(clientID, clientSecret)
	} else {
		log.Warn().Msg("no API credentials configured; set them via /api/settings")
	}

	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// reference data
	fx.Provide(refdata.NewTierTable),
	fx.Provide(refdata.NewJobTable),
	fx.Provide(refdata.NewServerTable),
	// repos
	fx.Provide(repository.NewSettingsRepository),
	fx.Provide(repository.NewTokenRepository),
	fx.Provide(repository.NewHistoryRepository),
	// api client
	fx.Provide(api.NewBudgetTracker),
	fx.Provide(ProvideClient),
	// svc
	fx.Provide(func(c *api.Client) service.Transport { return c }),
	fx.Provide(service.NewCharacterService),
	fx.Provide(service.NewSearchService),
	// server
	fx.Provide(server.NewEventHub),
	fx.Provide(server.NewRaidRecordServer),
)
