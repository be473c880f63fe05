package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recipehub/internal/adapter/repository"
	"recipehub/internal/usecase"
	"recipehub/pkg/config"
	"recipehub/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "msgctl",
	Short: "Maintenance commands for recipehub conversations",
	Long: `msgctl repairs and purges conversation data directly against the
configured store. It reads the same environment and YAML config as the API.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
}

// services is the usecase slice the commands operate on.
type services struct {
	backend       *repository.Backend
	conversations *usecase.ConversationUseCase
	messages      *usecase.MessageUseCase
}

func (s *services) Close() {
	if err := s.backend.Close(); err != nil {
		logger.Warn("Closing store failed: %v", err)
	}
}

func openServices(ctx context.Context) (*services, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Environment, cfg.LogLevel)

	backend, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newServices(backend, cfg.DeleteBatchSize), nil
}

func newServices(backend *repository.Backend, batchSize int) *services {
	repos := backend.Repositories
	return &services{
		backend:       backend,
		conversations: usecase.NewConversationUseCase(repos.Conversations, repos.Messages, repos.Relationships, repos.Profiles, batchSize),
		messages:      usecase.NewMessageUseCase(repos.Conversations, repos.Messages, repos.Relationships, nil, nil, nil),
	}
}

// withServices adapts a command body that needs the usecases.
func withServices(run func(ctx context.Context, s *services, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		return run(ctx, s, cmd, args)
	}
}
