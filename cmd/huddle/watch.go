package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"huddle/internal/client"
	"huddle/internal/config"
	"huddle/internal/events"
	"huddle/internal/models"
	"huddle/internal/reconcile"
)

func watchCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the board and chat live",
		Long: `watch prints every change to the task list and chat as it happens.
With --user, lines read from stdin are posted as chat messages. Lines starting
with a slash are commands:
  /add <text>        add a task
  /toggle <id>       flip a task's completed flag
  /rm <id>           delete a task
  /unsay <timestamp> delete a chat message`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := client.New(viper.GetString(config.KeyServer))
			stream, err := c.Dial(ctx)
			if err != nil {
				return err
			}
			defer stream.Close()

			state := reconcile.New()
			tasks, err := c.ListTasks(ctx)
			if err != nil {
				return err
			}
			state.SetTasks(tasks)
			out := cmd.OutOrStdout()
			for _, t := range state.Tasks() {
				printTask(out, "task", t)
			}

			if user != "" {
				w := &watcher{client: c, stream: stream, state: state, user: user, out: out}
				go w.readInput(ctx, cmd.InOrStdin())
			}

			for {
				e, err := stream.Next(ctx)
				switch {
				case ctx.Err() != nil:
					return nil
				case errors.Is(err, events.ErrUnknownEvent):
					continue
				case err != nil:
					return err
				}
				if _, failed := e.(events.Error); failed || state.Apply(e) {
					printEvent(out, e)
				}
			}
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "chat as this user, reading messages from stdin")
	return cmd
}

type watcher struct {
	client *client.Client
	stream *client.Stream
	state  *reconcile.State
	user   string
	out    io.Writer
}

func (w *watcher) readInput(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := w.handleLine(ctx, line); err != nil {
			fmt.Fprintln(w.out, "error:", err)
		}
	}
}

func (w *watcher) handleLine(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/add":
		t, err := w.client.AddTask(ctx, arg)
		if err != nil {
			return err
		}
		w.state.TaskCreated(t)
		printTask(w.out, "added", t)
		return nil
	case "/toggle":
		current, ok := w.findTask(arg)
		if !ok {
			return fmt.Errorf("no task %q", arg)
		}
		flipped := !current.Completed
		_, err := w.client.UpdateTask(ctx, arg, models.TaskPatch{Completed: &flipped})
		return err
	case "/rm":
		if err := w.client.DeleteTask(ctx, arg); err != nil {
			return err
		}
		w.state.TaskRemoved(arg)
		return nil
	case "/unsay":
		w.state.MessageRemoved(arg)
		return w.stream.Send(events.DeleteMessage{Timestamp: arg})
	}

	if err := w.stream.Send(events.Typing{User: w.user}); err != nil {
		return err
	}
	if err := w.stream.Send(events.SendMessage{User: w.user, Text: line}); err != nil {
		return err
	}
	return w.stream.Send(events.StopTyping{User: w.user})
}

func (w *watcher) findTask(id string) (models.Task, bool) {
	for _, t := range w.state.Tasks() {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

func printTask(out io.Writer, verb string, t models.Task) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Fprintf(out, "%-8s [%s] %s  (%s)\n", verb, mark, t.Task, t.ID)
}

func printEvent(out io.Writer, e events.Event) {
	switch ev := e.(type) {
	case events.ChatLog:
		for _, m := range ev.Messages {
			fmt.Fprintf(out, "%s  <%s> %s\n", m.Timestamp, m.User, m.Text)
		}
	case events.NewMessage:
		fmt.Fprintf(out, "%s  <%s> %s\n", ev.Message.Timestamp, ev.Message.User, ev.Message.Text)
	case events.MessageDeleted:
		fmt.Fprintf(out, "message %s deleted\n", ev.Timestamp)
	case events.UserTyping:
		fmt.Fprintf(out, "%s is typing...\n", ev.User)
	case events.UserStoppedTyping:
		fmt.Fprintf(out, "%s stopped typing\n", ev.User)
	case events.TaskAdded:
		printTask(out, "added", ev.Task)
	case events.TaskUpdated:
		printTask(out, "updated", ev.Task)
	case events.TaskDeleted:
		printTask(out, "deleted", ev.Task)
	case events.Error:
		fmt.Fprintln(out, "server error:", ev.Message)
	}
}
