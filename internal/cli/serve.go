package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/personachat/personachat/internal/notify"
	"github.com/personachat/personachat/internal/persona"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		bell    bool
		logPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background work: the proactive scheduler and persona file watching",
		Long: `Run personachat's background loops until interrupted:

  - the proactive scheduler, which appends messages to your chats and
    prints a notification line
  - a watcher that reloads persona definition files when they change`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := notify.Fanout{notify.NewTerminal(cmd.OutOrStdout(), bell)}
			if logPath != "" {
				f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open notification log: %w", err)
				}
				defer f.Close()
				notifier = append(notifier, notify.NewTerminal(f, false))
			}
			sched := a.newScheduler(a.chatSink(), notify.Sink(notifier, a.personaTitle(ctx)))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sched.Run(gctx, a.cfg.Proactive.CheckInterval.Duration)
			})
			if a.personaDir != "" {
				w := persona.NewWatcher(a.personaDir, a.personas, 0, a.log)
				g.Go(func() error { return w.Run(gctx) })
			}

			a.log.Info("serving", "persona_dir", a.personaDir, "check_interval", a.cfg.Proactive.CheckInterval.String())
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&bell, "bell", true, "ring the terminal bell on proactive messages")
	cmd.Flags().StringVar(&logPath, "notify-log", "", "also append notifications to this file")

	return cmd
}
