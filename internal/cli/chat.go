package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/personachat/personachat/internal/conversation"
	"github.com/personachat/personachat/internal/notify"
)

const chatHelp = `Commands:
  /regen [message-id]  regenerate the last reply, or from a message
  /rename <title>      rename this chat
  /history             show the transcript
  /new                 start a new chat with the same persona
  /quit                leave (Ctrl-D works too)`

func newChatCmd(flags *globalFlags) *cobra.Command {
	var (
		personaID string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat with a persona",
		Long: `Start an interactive chat. Replies stream as they arrive.

Ctrl-C while a reply is streaming stops it and keeps the partial text.
Ctrl-C at the prompt leaves the chat.

Examples:
  personachat chat
  personachat chat --persona sam
  personachat chat --session 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var sess conversation.Session
			if sessionID != "" {
				sess, err = a.sessions.Get(ctx, sessionID)
			} else {
				sess, err = a.sessions.Create(ctx, personaID)
			}
			if err != nil {
				return err
			}

			r := &chatREPL{app: a, out: cmd.OutOrStdout(), session: sess, inbox: notify.NewInbox()}
			r.persona = a.personas.Resolve(ctx, sess.PersonaID).Name

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-sigCh:
						if !a.sessions.Stop(r.sessionID()) {
							cancel()
							return
						}
					}
				}
			}()

			// Proactive messages that fire during the chat are shown at the
			// next prompt.
			sched := a.newScheduler(a.chatSink(), notify.Sink(r.inbox, a.personaTitle(ctx)))
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				if err := sched.Run(ctx, a.cfg.Proactive.CheckInterval.Duration); err != nil {
					a.log.Debug("proactive scheduler not running", "error", err)
				}
			}()
			defer func() {
				cancel()
				<-schedDone
			}()

			return r.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "persona id (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "resume an existing session")

	return cmd
}

type chatREPL struct {
	app     *app
	out     io.Writer
	persona string
	inbox   *notify.Inbox

	mu      sync.Mutex
	session conversation.Session
}

// sessionID is read by the signal goroutine.
func (r *chatREPL) sessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ID
}

func (r *chatREPL) setSession(s conversation.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = s
}

func (r *chatREPL) run(ctx context.Context, in io.Reader) error {
	// Lines are read on their own goroutine so Ctrl-C at the prompt can
	// end the loop without waiting for input.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(r.out, "Chatting with %s. Type /help for commands.\n\n", r.persona)
	for {
		r.showNotifications()
		fmt.Fprint(r.out, "you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (r *chatREPL) showNotifications() {
	pending := r.inbox.Pending()
	if len(pending) == 0 {
		return
	}
	for _, n := range pending {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", n.At.Local().Format("15:04"), n.Title, n.Body)
	}
	r.inbox.Dismiss(notify.Tag)
}

func (r *chatREPL) handle(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.reply(ctx, func(onChunk func(string)) (conversation.Message, error) {
			return r.app.sessions.Send(ctx, r.session.ID, line, onChunk)
		})
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/regen":
		anchor := arg
		if anchor == "" {
			anchor = conversation.AnchorLast
		}
		return false, r.reply(ctx, func(onChunk func(string)) (conversation.Message, error) {
			return r.app.sessions.RegenerateFrom(ctx, r.session.ID, anchor, onChunk)
		})
	case "/rename":
		s, err := r.app.sessions.Rename(ctx, r.session.ID, arg)
		if err != nil {
			return false, err
		}
		r.setSession(s)
		fmt.Fprintf(r.out, "Renamed to %q.\n", s.Title)
	case "/history":
		s, err := r.app.sessions.Get(ctx, r.session.ID)
		if err != nil {
			return false, err
		}
		printTranscript(r.out, s, r.persona)
	case "/new":
		s, err := r.app.sessions.Create(ctx, r.session.PersonaID)
		if err != nil {
			return false, err
		}
		r.setSession(s)
		fmt.Fprintf(r.out, "Started a new chat with %s.\n", r.persona)
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", name)
	}
	return false, nil
}

func (r *chatREPL) reply(ctx context.Context, run func(onChunk func(string)) (conversation.Message, error)) error {
	fmt.Fprintf(r.out, "%s> ", r.persona)
	printer := newReplyPrinter(r.out, true)
	msg, err := run(printer.chunk)
	if err != nil {
		printer.stopSpinner()
		fmt.Fprintln(r.out)
		if errors.Is(err, conversation.ErrNothingToRegenerate) {
			return errors.New("nothing to regenerate yet")
		}
		return err
	}
	printer.done(msg)
	return nil
}
