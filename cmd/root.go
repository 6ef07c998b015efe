// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// viperKeyAnnotation marks a flag as overriding a configuration key. The flag
// is bound only when its command runs, so two commands may map different
// flags onto the same key.
const viperKeyAnnotation = "bulksend/viper-key"

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "bulksend",
		Short:         "bulksend delivers personalized messages to a contact list through the messaging web client.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindAnnotatedFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "bulksend"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting bulksend", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./bulksend.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newSendCmd(), newRetryCmd(), newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx and logs a failure once.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	logger := observability.GetLogger()
	if errors.Is(err, context.Canceled) {
		logger.Warn("Run interrupted.", zap.Error(err))
	} else {
		logger.Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("bulksend")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BULKSEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}
	return nil
}

// annotateFlag records the configuration key a flag overrides.
func annotateFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, viperKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("annotate flag %q: %v", name, err))
	}
}

func bindAnnotatedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(keys[0], f); bindErr != nil {
			err = fmt.Errorf("bind flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

// configFrom returns the configuration stored by PersistentPreRunE.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
