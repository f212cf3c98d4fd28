package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/casualjim/oachat"
	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/conversation"
	"github.com/casualjim/oachat/pkg/natsx"
	"github.com/casualjim/oachat/pkg/slogx"
	"github.com/casualjim/oachat/sink"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	chatModel       string
	chatSystem      string
	chatWindow      int
	chatTemperature float64
	chatMaxTokens   int
	chatRender      bool
	chatNATSPrefix  string
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Stream a chat completion, or start an interactive session without a prompt",
	Args:  cobra.ArbitraryArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "gpt-4o-mini", "model to chat with")
	chatCmd.Flags().StringVarP(&chatSystem, "system", "s", "", "system prompt sent before the conversation")
	chatCmd.Flags().IntVar(&chatWindow, "window", 0, "send only the last N messages as context, 0 sends all")
	chatCmd.Flags().Float64Var(&chatTemperature, "temperature", -1, "sampling temperature, negative leaves the service default")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 0, "maximum reply length in tokens, 0 leaves the service default")
	chatCmd.Flags().BoolVar(&chatRender, "render", false, "render the finished reply as markdown instead of streaming it")
	chatCmd.Flags().StringVar(&chatNATSPrefix, "nats-subject", "", "also publish every delta to NATS under this subject prefix")
}

type chatSession struct {
	client *oachat.Client
	thread *conversation.Thread
	out    io.Writer
	extra  sink.Sink
	glam   *glamour.TermRenderer
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	session := &chatSession{
		client: client,
		thread: conversation.New(conversation.WithWindow(chatWindow)),
		out:    cmd.OutOrStdout(),
	}

	if chatRender {
		session.glam, err = glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return err
		}
	}

	if chatNATSPrefix != "" {
		nc, err := natsx.NewClient(nats.Name("oachat-cli"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", natsx.URL(), err)
		}
		defer nc.Drain() //nolint:errcheck
		session.extra = sink.NATS(nc, chatNATSPrefix)
		slog.Info("publishing deltas", slog.String("subject", chatNATSPrefix+"."+session.thread.ID().String()))
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if len(args) > 0 {
		return session.turn(cmd.Context(), strings.Join(args, " "), interrupts)
	}
	return session.repl(cmd.Context(), cmd.InOrStdin(), interrupts)
}

func (s *chatSession) params() oachat.CompletionParams {
	params := oachat.CompletionParams{
		ConversationID: s.thread.ID().String(),
		Model:          chatModel,
		System:         chatSystem,
	}
	if chatTemperature >= 0 {
		params.SetOption(oachat.OptionTemperature, chatTemperature)
	}
	if chatMaxTokens > 0 {
		params.SetOption(oachat.OptionMaxTokens, chatMaxTokens)
	}
	return params
}

// turn sends one user message and prints the reply. An interrupt cancels the
// reply but keeps what was received so far in the history.
func (s *chatSession) turn(ctx context.Context, input string, interrupts <-chan os.Signal) error {
	s.thread.Append(api.UserMessage(input))

	reply := conversation.NewAccumulator(s.thread)
	var started bool
	printer := sink.Func(func(_ context.Context, d api.ChoiceDelta) error {
		if s.glam != nil || d.Index != 0 || d.Content == "" {
			return nil
		}
		if !started {
			started = true
			fmt.Fprint(s.out, color.MagentaString("Assistant")+": ")
		}
		_, err := fmt.Fprint(s.out, d.Content)
		return err
	})

	stream := s.client.StreamChat(ctx, s.params(), s.thread, sink.Multi(reply, printer, s.extra))
	select {
	case <-stream.Done():
	case <-interrupts:
		stream.Cancel()
		<-stream.Done()
	}

	err := stream.Wait()
	if started {
		fmt.Fprintln(s.out)
	}
	if errors.Is(err, oachat.ErrCancelled) {
		reply.Commit()
		fmt.Fprintln(s.out, color.YellowString("(cancelled)"))
		return nil
	}
	if err != nil {
		return err
	}
	if !reply.Committed() {
		reply.Commit()
	}

	if s.glam != nil {
		rendered, rerr := s.glam.Render(reply.Content(0))
		if rerr != nil {
			return rerr
		}
		fmt.Fprint(s.out, color.MagentaString("Assistant")+":")
		fmt.Fprintln(s.out, rendered)
	}
	return nil
}

func (s *chatSession) repl(ctx context.Context, in io.Reader, interrupts <-chan os.Signal) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Split(bufio.ScanLines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprintf(s.out, "%s: ", color.CyanString("User"))

		var input string
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out, "Exiting...")
				return nil
			}
			input = strings.TrimSpace(line)
		case <-interrupts:
			fmt.Fprintln(s.out)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "/exit"):
			return nil
		case strings.EqualFold(input, "/reset"):
			s.thread.Reset()
			fmt.Fprintln(s.out, color.YellowString("(history cleared)"))
			continue
		}

		if err := s.turn(ctx, input, interrupts); err != nil {
			slog.Error("chat turn failed", slogx.Error(err))
			fmt.Fprintf(s.out, "%s %v\n", color.RedString("Error:"), err)
		}
	}
}
