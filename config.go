package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/hotpotato/games/hotpotato"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Config struct {
	bind           string
	envFile        string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	rateLimit      int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	flightTime      time.Duration
	maxHold         time.Duration
	maxPlayers      int
	returnToThrower bool
	tick            time.Duration
	warnBefore      []time.Duration
}

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs error

	if (c.tlsCert == "") != (c.tlsKey == "") {
		errs = multierr.Append(errs, errors.New("both --tls-cert and --tls-key must be provided together"))
	}
	if c.port < 1 || c.port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port))
	}
	if c.maxHold <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("invalid max hold (must be positive): %s", c.maxHold))
	}
	if c.tick <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("invalid tick (must be positive): %s", c.tick))
	} else if c.maxHold > 0 && c.tick > c.maxHold {
		errs = multierr.Append(errs, fmt.Errorf("invalid tick (must not exceed --max-hold): %s", c.tick))
	}
	for _, w := range c.warnBefore {
		if w <= 0 || w >= c.maxHold {
			errs = multierr.Append(errs, fmt.Errorf("invalid warning (must be between 0 and --max-hold exclusive): %s", w))
		}
	}
	if c.flightTime < 0 {
		errs = multierr.Append(errs, fmt.Errorf("invalid flight time (must not be negative): %s", c.flightTime))
	}
	if c.maxPlayers < hotpotato.MinPlayers {
		errs = multierr.Append(errs, fmt.Errorf("invalid max players (must be at least %d): %d", hotpotato.MinPlayers, c.maxPlayers))
	}
	if c.rateLimit <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("invalid rate limit (must be positive): %d", c.rateLimit))
	}

	return errs
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// options builds the settings shared by every game session.
func (c *Config) options(log *zap.Logger) hotpotato.Options {
	return hotpotato.Options{
		MaxHold:         c.maxHold,
		Tick:            c.tick,
		WarnBefore:      c.warnBefore,
		FlightTime:      c.flightTime,
		MaxPlayers:      c.maxPlayers,
		ReturnToThrower: c.returnToThrower,
		Logger:          log,
	}
}

// applyEnv fills every flag not given on the command line from its
// HOTPOTATO_* environment variable, after loading the optional env file.
func applyEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	envFile, _ := fs.GetString("env-file")
	if !fs.Changed("env-file") && v.IsSet("env-file") {
		envFile = v.GetString("env-file")
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	var errs error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})
	return errs
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HOTPOTATO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hotpotato",
		Short:         "A real-time multiplayer hot potato game, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyEnv(cmd.Flags(), v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.version {
				cmd.Printf("hotpotato v%s\n", releaseVersion)

				return nil
			}

			if err := cfg.validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return ServePage(cmd.Context(), cfg, log)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HOTPOTATO_BIND)")
	fs.StringVar(&cfg.envFile, "env-file", "", "load environment variables from this file (env: HOTPOTATO_ENV_FILE)")
	fs.DurationVar(&cfg.flightTime, "flight-time", 0, "time a thrown potato spends in the air (env: HOTPOTATO_FLIGHT_TIME)")
	fs.DurationVar(&cfg.maxHold, "max-hold", hotpotato.DefaultMaxHold, "time a player may hold the potato before being eliminated (env: HOTPOTATO_MAX_HOLD)")
	fs.IntVar(&cfg.maxPlayers, "max-players", hotpotato.DefaultMaxPlayers, "maximum players per game (env: HOTPOTATO_MAX_PLAYERS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", time.Minute, "time before unresponsive players are dropped (env: HOTPOTATO_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: HOTPOTATO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: HOTPOTATO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: HOTPOTATO_PROFILE)")
	fs.IntVar(&cfg.rateLimit, "rate-limit", 10, "messages per second accepted from each player (env: HOTPOTATO_RATE_LIMIT)")
	fs.BoolVar(&cfg.returnToThrower, "return-to-thrower", true, "after an elimination, return the potato to whoever threw it (env: HOTPOTATO_RETURN_TO_THROWER)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: HOTPOTATO_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.tick, "tick", hotpotato.DefaultTick, "how often hold times are checked (env: HOTPOTATO_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: HOTPOTATO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: HOTPOTATO_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: HOTPOTATO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: HOTPOTATO_VERSION)")
	fs.DurationSliceVar(&cfg.warnBefore, "warn-before", []time.Duration{hotpotato.DefaultWarnBefore}, "warn the holder this long before elimination; repeatable (env: HOTPOTATO_WARN_BEFORE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hotpotato v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
