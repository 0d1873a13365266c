package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/groundwork/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/sse"
)

var (
	askServer      string
	askJSON        bool
	askInteractive bool
)

// errAnswerFailed is returned when a one-shot answer ends with the error fragment.
var errAnswerFailed = errors.New("answer failed")

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed corpus",
	Long: `Streams a cited answer to a question. Retrieved sources are listed after
the answer and [n] markers refer to them.

Without a question on a terminal, or with --interactive, ask starts a
conversation; enter an empty line or "exit" to stop. Use --server to ask a
running 'groundwork serve' instead of answering locally.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askServer, "server", "", "base URL of a running groundwork server")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the folded answer as JSON")
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "hold a multi-turn conversation")
	rootCmd.AddCommand(askCmd)
}

// streamFunc starts an answer stream for a conversation.
type streamFunc func(ctx context.Context, history []domain.Message) (<-chan domain.Event, error)

func runAsk(cmd *cobra.Command, args []string) error {
	stream, err := answerStream()
	if err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	interactive := askInteractive || (question == "" && isTerminal(os.Stdin))

	if interactive {
		return askConversation(cmd, stream, question)
	}

	if question == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return domain.ErrEmptyQuery
	}

	answer, err := askOnce(cmd, stream, []domain.Message{{Role: domain.RoleUser, Content: question}})
	if err != nil {
		return err
	}
	if answer.Failed {
		return errAnswerFailed
	}
	return nil
}

// answerStream answers through the server when --server is set, locally otherwise.
func answerStream() (streamFunc, error) {
	if askServer != "" {
		client := sse.NewClient(nil)
		url := strings.TrimSuffix(askServer, "/") + "/api/chat"
		return func(ctx context.Context, history []domain.Message) (<-chan domain.Event, error) {
			return client.Stream(ctx, url, history)
		}, nil
	}

	if err := requireService(answerService != nil, "answer service"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, history []domain.Message) (<-chan domain.Event, error) {
		return answerService.StreamAnswer(ctx, history), nil
	}, nil
}

// askConversation reads questions until EOF, an empty line or "exit".
// Each answer joins the history sent with the next question.
func askConversation(cmd *cobra.Command, stream streamFunc, first string) error {
	s := styles.DefaultStyles()
	reader := bufio.NewReader(cmd.InOrStdin())
	var history []domain.Message

	question := first
	for {
		if question == "" {
			cmd.Print(s.Prompt.Render("> "))
			line, err := reader.ReadString('\n')
			question = strings.TrimSpace(line)
			if question == "" || question == "exit" || question == "quit" {
				return nil
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read question: %w", err)
			}
		}

		turn := append(slices.Clip(history), domain.Message{Role: domain.RoleUser, Content: question})
		answer, err := askOnce(cmd, stream, turn)
		if err != nil {
			return err
		}
		if !answer.Failed {
			history = append(turn, answer.Message())
		}
		cmd.Println()
		question = ""
	}
}

// askOnce streams one answer to the command output and returns it folded.
func askOnce(cmd *cobra.Command, stream streamFunc, history []domain.Message) (domain.Answer, error) {
	events, err := stream(cmd.Context(), history)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("ask failed: %w", err)
	}

	s := styles.DefaultStyles()
	out := cmd.OutOrStdout()
	var (
		answer    domain.Answer
		positions []int
	)
	for ev := range events {
		answer = answer.Apply(ev)
		if resources, ok := ev.(domain.ResourcesEvent); ok {
			positions = domain.SourcePositions(resources.Resources)
		}
		if !askJSON {
			renderEvent(out, s, ev, positions)
		}
	}
	if err := cmd.Context().Err(); err != nil {
		return answer, err
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return answer, fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return answer, nil
	}

	cmd.Println()
	renderSources(cmd, s, answer.Evidence)
	return answer, nil
}

// renderEvent prints one event. Citation markers number the deduplicated
// source list printed by renderSources.
func renderEvent(out io.Writer, s *styles.Styles, ev domain.Event, positions []int) {
	switch e := ev.(type) {
	case domain.TextEvent:
		if e.Err != nil || e.Text == domain.ErrorFragment {
			fmt.Fprint(out, s.Error.Render(e.Text))
			return
		}
		fmt.Fprint(out, e.Text)
	case domain.CitationEvent:
		idx := e.Citation.DocumentIndex
		if idx >= 0 && idx < len(positions) {
			idx = positions[idx]
		}
		fmt.Fprint(out, s.CitationMarker(idx))
	}
}

// renderSources lists each source once. [n] markers refer to this list.
func renderSources(cmd *cobra.Command, s *styles.Styles, evidence []domain.EvidenceItem) {
	if len(evidence) == 0 {
		cmd.Println(s.Muted.Render("No sources found."))
		return
	}

	cmd.Println()
	cmd.Println(s.Title.Render("Sources"))
	for i, item := range domain.DedupeBySource(evidence) {
		cmd.Printf("  %s %s %s\n", s.CitationMarker(i), s.Source.Render(item.SourceURL), s.Similarity(item.Similarity))
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
