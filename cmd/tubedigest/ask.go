package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Strob0t/tubedigest/internal/config"
	"github.com/Strob0t/tubedigest/internal/domain/task"
	"github.com/Strob0t/tubedigest/internal/logger"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
)

// askFlags are the inputs of the ask command.
type askFlags struct {
	url      string
	channel  string
	date     string
	playlist string
	stream   bool
	jsonOut  bool
	timeout  time.Duration
}

func askCmd(cfgPath *string) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [request text]",
		Short: "Send a request to the orchestrator and print its progress",
		Example: `  tubedigest ask "summarize playlist PLabc123"
  tubedigest ask --channel UC123 --date 2024-05-01
  tubedigest ask --playlist PLabc123 --stream=false --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, closer := logger.NewWithWriter(cfg.Logging, os.Stderr)
			defer closer.Close()
			slog.SetDefault(log)

			input, err := f.input(args)
			if err != nil {
				return err
			}
			client := a2a.NewClient(a2a.ClientConfig{
				Peer:        agentOrchestrator,
				BaseURL:     f.url,
				Timeout:     f.timeout,
				Credentials: newCredentials(cfg.Secrets),
				AuthSecret:  cfg.Protocol.AuthSecret,
			})

			out := cmd.OutOrStdout()
			final := client.Delegate(cmd.Context(), a2a.Envelope{
				TaskID: uuid.NewString(),
				Input:  input,
				Stream: f.stream,
			}, func(ev task.Event) {
				if !ev.Type.IsTerminal() {
					printEvent(out, ev, f.jsonOut)
				}
			})
			printEvent(out, final, f.jsonOut)

			if final.Type == task.EventFailed && final.Reason != nil {
				return fmt.Errorf("task failed: %s", final.Reason.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "http://localhost:10002", "orchestrator base URL")
	cmd.Flags().StringVar(&f.channel, "channel", "", "channel id (with --date)")
	cmd.Flags().StringVar(&f.date, "date", "", "upload date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.playlist, "playlist", "", "playlist id")
	cmd.Flags().BoolVar(&f.stream, "stream", true, "stream progress events")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print events as JSON lines")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "overall deadline")
	cmd.MarkFlagsRequiredTogether("channel", "date")
	cmd.MarkFlagsMutuallyExclusive("channel", "playlist")
	return cmd
}

// input builds the request input from flags, or from free text.
func (f *askFlags) input(args []string) (task.Input, error) {
	in := task.Input{Text: strings.TrimSpace(strings.Join(args, " "))}
	switch {
	case f.channel != "":
		in.Intent = &task.Intent{ChannelDate: &task.ChannelDate{ChannelID: f.channel, Date: f.date}}
	case f.playlist != "":
		in.Intent = &task.Intent{Playlist: &task.PlaylistID{PlaylistID: f.playlist}}
	case in.Text == "":
		return in, fmt.Errorf("give request text, --channel/--date or --playlist")
	}
	return in, nil
}

func printEvent(w io.Writer, ev task.Event, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	switch ev.Type {
	case task.EventDelegationComplete:
		fmt.Fprintf(w, "found %d videos\n", ev.Count)
	case task.EventItemComplete:
		if o := ev.Outcome; o != nil {
			if o.OK {
				fmt.Fprintf(w, "  [%d] %s ok\n", o.Index, o.Item)
			} else if o.Reason != nil {
				fmt.Fprintf(w, "  [%d] %s failed: %s\n", o.Index, o.Item, o.Reason.Error())
			}
		}
	case task.EventCombining:
		fmt.Fprintln(w, "combining summaries")
	case task.EventFinished:
		if r := ev.Result; r != nil {
			if len(r.Failed) > 0 {
				fmt.Fprintf(w, "%d of %d videos failed\n", len(r.Failed), len(r.VideoIDs))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, r.Combined)
		}
	case task.EventFailed:
		if ev.Reason != nil {
			fmt.Fprintf(w, "failed: %s\n", ev.Reason.Error())
		}
	default:
		fmt.Fprintln(w, string(ev.Type))
	}
}
