package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/config"
	"github.com/personachat/personachat/internal/notify"
	"github.com/personachat/personachat/internal/proactive"
)

func newProactiveCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proactive",
		Short: "Configure messages personas send on their own",
	}
	cmd.AddCommand(
		newProactiveStatusCmd(flags),
		newProactiveSetCmd(flags),
		newProactiveSendCmd(flags),
		newProactiveRunCmd(flags),
	)
	return cmd
}

func newProactiveStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the proactive schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sched := a.newScheduler()
			st, err := sched.State(ctx)
			if err != nil {
				return err
			}
			quiet, err := sched.InQuietHours(ctx, time.Now())
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), st, quiet)
			return nil
		},
	}
}

func printSchedule(out io.Writer, st proactive.State, quiet bool) {
	enabled := "off"
	if st.Enabled {
		enabled = "on"
	}
	fmt.Fprintf(out, "Proactive messages: %s\n", enabled)
	fmt.Fprintf(out, "  frequency:   %s\n", st.Frequency.Label())
	fmt.Fprintf(out, "  quiet hours: %s-%s", st.QuietHours.Start, st.QuietHours.End)
	if quiet {
		fmt.Fprint(out, " (quiet now)")
	}
	fmt.Fprintln(out)
	if st.LastSentAt.IsZero() {
		fmt.Fprintln(out, "  last sent:   never")
	} else {
		fmt.Fprintf(out, "  last sent:   %s\n", st.LastSentAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "  total sent:  %d\n", st.TotalSent)
}

func newProactiveSetCmd(flags *globalFlags) *cobra.Command {
	var (
		enable     bool
		disable    bool
		frequency  string
		quietStart string
		quietEnd   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the proactive schedule",
		Long: `Change the proactive schedule. Only the flags you pass are changed.

Examples:
  personachat proactive set --enable --frequency daily
  personachat proactive set --quiet-start 22:30 --quiet-end 07:00
  personachat proactive set --disable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("--enable and --disable are mutually exclusive")
			}

			var set proactive.Settings
			switch {
			case enable:
				set.Enabled = ptr(true)
			case disable:
				set.Enabled = ptr(false)
			}
			if cmd.Flags().Changed("frequency") {
				f, err := proactive.ParseFrequency(frequency)
				if err != nil {
					return err
				}
				set.Frequency = &f
			}
			for name, v := range map[string]*string{"quiet-start": &quietStart, "quiet-end": &quietEnd} {
				if cmd.Flags().Changed(name) && !proactive.ValidClock(*v) {
					return fmt.Errorf("--%s: want HH:MM, got %q", name, *v)
				}
			}
			if cmd.Flags().Changed("quiet-start") {
				set.QuietStart = &quietStart
			}
			if cmd.Flags().Changed("quiet-end") {
				set.QuietEnd = &quietEnd
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.newScheduler().UpdateSettings(cmd.Context(), set)
			if err != nil {
				return err
			}

			// Mirror into the config file so a fresh data dir starts from
			// the same schedule.
			if a.configPath != "" {
				err := config.UpdateFile(a.configPath, func(cfg *config.GlobalConfig) {
					cfg.Proactive.Enabled = st.Enabled
					cfg.Proactive.Frequency = string(st.Frequency)
					cfg.Proactive.QuietStart = st.QuietHours.Start
					cfg.Proactive.QuietEnd = st.QuietHours.End
				})
				if err != nil {
					a.log.Warn("could not update config file", "path", a.configPath, "error", err)
				}
			}

			printSchedule(cmd.OutOrStdout(), st, st.QuietHours.Contains(time.Now()))
			return nil
		},
	}

	tiers := make([]string, 0, 4)
	for _, f := range proactive.Frequencies() {
		tiers = append(tiers, string(f))
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "turn proactive messages on")
	cmd.Flags().BoolVar(&disable, "disable", false, "turn proactive messages off")
	cmd.Flags().StringVar(&frequency, "frequency", "", "one of "+strings.Join(tiers, ", "))
	cmd.Flags().StringVar(&quietStart, "quiet-start", "", "start of quiet hours, HH:MM")
	cmd.Flags().StringVar(&quietEnd, "quiet-end", "", "end of quiet hours, HH:MM")

	return cmd
}

func ptr[T any](v T) *T { return &v }

func newProactiveSendCmd(flags *globalFlags) *cobra.Command {
	var (
		personaID string
		message   string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a proactive message now, ignoring the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			term := notify.NewTerminal(cmd.OutOrStdout(), false)
			s := a.newScheduler(a.chatSink(), notify.Sink(term, a.personaTitle(ctx)))
			if _, err := s.Fire(ctx, personaID, message); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "sending persona (default: most recent chat's)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (default: a template)")

	return cmd
}

func newProactiveRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler in the foreground",
		Long: `Run only the proactive scheduler, printing messages as they fire.
Use 'personachat serve' to also watch persona files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			term := notify.NewTerminal(cmd.OutOrStdout(), true)
			s := a.newScheduler(a.chatSink(), notify.Sink(term, a.personaTitle(ctx)))
			fmt.Fprintf(cmd.ErrOrStderr(), "Scheduler running, checking every %s. Ctrl-C to stop.\n", a.cfg.Proactive.CheckInterval)
			return s.Run(ctx, a.cfg.Proactive.CheckInterval.Duration)
		},
	}
}
