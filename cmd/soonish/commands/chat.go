package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/services/ai"
)

const (
	chatConfirm = "/yes"
	chatReject  = "/no"
	chatQuit    = "/quit"
)

func newChatCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Describe a plan in your own words and let the assistant file it",
		Long:  "Starts a conversation. Answer the assistant's questions; when it suggests a plan reply /yes to create it or /no to keep talking. /quit leaves.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, *debug, func(ctx context.Context, s *session) error {
				if s.cfg.OpenAIKey == "" {
					return errors.New("OPENAI_API_KEY is not set")
				}
				registry := ai.NewProviderRegistry()
				registry.Register("openai", ai.NewOpenAIFactory(logger.Component(s.log, "llm"), *debug))
				extractor, err := registry.GetProvider(s.cfg.AIProvider, map[string]string{
					"api_key":  s.cfg.OpenAIKey,
					"model":    s.cfg.AIModel,
					"base_url": s.cfg.AIBaseURL,
				})
				if err != nil {
					return err
				}
				chats := ai.NewChatService(extractor, s.plans, logger.Component(s.log, "chat"))
				chats.SetClock(s.cfg.Now)
				return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), chats.Start())
			})
		},
	}
}

// runChat reads one user line at a time until EOF or /quit
func runChat(ctx context.Context, in io.Reader, out io.Writer, conv *ai.Conversation) error {
	transcript := conv.Transcript()
	fmt.Fprintln(out, assistStyle.Render(transcript[len(transcript)-1].Content))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case chatQuit:
			return nil
		case chatConfirm:
			plan, err := conv.Confirm(ctx)
			if err != nil {
				fmt.Fprintln(out, warnStyle.Render(chatErrorText(err)))
				continue
			}
			fmt.Fprintln(out, "Created: "+renderPlanLine(plan, plan.CreatedAt))
		case chatReject:
			if err := conv.Reject(); err != nil {
				fmt.Fprintln(out, warnStyle.Render(chatErrorText(err)))
				continue
			}
			fmt.Fprintln(out, assistStyle.Render(ai.RejectAcknowledgement))
		default:
			reply, err := conv.Send(ctx, line)
			if err != nil {
				fmt.Fprintln(out, warnStyle.Render(chatErrorText(err)))
				continue
			}
			fmt.Fprintln(out, assistStyle.Render(reply.Text))
			if reply.Kind == ai.ReplySuggestion {
				fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("%s to create, %s to keep talking", chatConfirm, chatReject)))
			}
		}
	}
}

func chatErrorText(err error) string {
	switch {
	case errors.Is(err, ai.ErrNoPendingSuggestion):
		return "There is no suggestion to answer yet."
	case errors.Is(err, ai.ErrTurnInFlight):
		return "Still thinking about the last message."
	}
	var extractionErr *ai.ExtractionError
	if errors.As(err, &extractionErr) {
		return "The assistant could not answer, please try again."
	}
	return err.Error()
}
