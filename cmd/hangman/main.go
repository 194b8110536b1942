// Command hangman runs a headless host session: it opens a room on the
// relay, seeds bot opponents, and plays a full tournament. Useful for
// soak-testing the relay and as a joinable lobby for real guests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/bot"
	"github.com/isumenuka/hangman-sub000/internal/engine"
	"github.com/isumenuka/hangman-sub000/internal/session"
	"github.com/isumenuka/hangman-sub000/internal/stats"
	"github.com/isumenuka/hangman-sub000/internal/words"
)

type config struct {
	relayURL    string
	name        string
	bots        int
	rounds      int
	mistakes    int
	difficulty  string
	wordAPI     string
	databaseURL string
	verbose     bool
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HANGMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hangman",
		Short:         "Headless hangman tournament host.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.relayURL, "relay-url", "ws://localhost:8080", "relay base url (env: HANGMAN_RELAY_URL)")
	fs.StringVar(&cfg.name, "name", "Host", "display name (env: HANGMAN_NAME)")
	fs.IntVar(&cfg.bots, "bots", 2, "number of bot opponents (env: HANGMAN_BOTS)")
	fs.IntVar(&cfg.rounds, "rounds", 3, "rounds per tournament (env: HANGMAN_ROUNDS)")
	fs.IntVar(&cfg.mistakes, "mistakes", 5, "mistake ceiling per round (env: HANGMAN_MISTAKES)")
	fs.StringVar(&cfg.difficulty, "difficulty", "normal", "easy|normal|hard (env: HANGMAN_DIFFICULTY)")
	fs.StringVar(&cfg.wordAPI, "word-api", "", "word api base url; empty uses the built-in list (env: HANGMAN_WORD_API)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres dsn for the leaderboard sink (env: HANGMAN_DATABASE_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "debug logging (env: HANGMAN_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}

func run(ctx context.Context, cfg *config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	var rounds words.RoundSource
	if cfg.wordAPI != "" {
		rounds = words.NewAPISource(cfg.wordAPI, log)
	} else {
		rounds = words.NewStaticSource(nil)
	}

	var sink stats.Sink = stats.NopSink{}
	if cfg.databaseURL != "" {
		dbSink, err := stats.OpenDBSink(cfg.databaseURL, log)
		if err != nil {
			return fmt.Errorf("open leaderboard sink: %w", err)
		}
		sink = dbSink
	}

	code, err := session.GenerateRoomCode()
	if err != nil {
		return err
	}

	conn, err := session.Dial(ctx, cfg.relayURL, code, true, log)
	if err != nil {
		return err
	}

	rules := engine.DefaultRules()
	rules.MistakeLimit = cfg.mistakes
	rules.MaxRounds = cfg.rounds

	host := session.NewHost(ctx, conn, cfg.name, rules, session.HostDeps{
		Rounds:     rounds,
		Brain:      bot.FrequencyBrain{},
		Stats:      sink,
		Difficulty: cfg.difficulty,
		Log:        log,
	})
	defer host.Close()

	log.Info("room open", zap.String("code", code))
	fmt.Printf("room code: %s\n", code)

	for i := 0; i < cfg.bots; i++ {
		if err := host.AddBot(ctx, fmt.Sprintf("Bot-%d", i+1)); err != nil {
			return err
		}
	}

	if err := host.StartRound(ctx); err != nil {
		return fmt.Errorf("start round: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-host.Notices():
			if !ok {
				return nil
			}
			switch n.Kind {
			case session.NoticeRoundStarted:
				log.Info("round started", zap.Int("round", n.Round))
				go selfPlay(ctx, host)
			case session.NoticeCountdown:
				if n.Count != nil {
					log.Info("next round countdown", zap.Int("count", *n.Count))
				}
			case session.NoticeRoundStartFailed:
				log.Error("round start failed", zap.Error(n.Err))
			case session.NoticeTournamentOver:
				log.Info("tournament over")
				return nil
			case session.NoticeDisconnected:
				return fmt.Errorf("relay connection lost")
			}
		}
	}
}

// selfPlay grinds through letters in frequency order so the headless
// host's own participant resolves its round.
func selfPlay(ctx context.Context, host *session.Host) {
	const order = "etaoinshrdlcumwfgypbvkjxqz"
	for _, c := range order {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1500 * time.Millisecond):
		}
		err := host.Guess(ctx, string(c))
		switch err {
		case nil:
		case session.ErrNoActiveRound:
			return
		default:
			// Already guessed or round finished; both end this pass.
			return
		}
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
