package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation on stdin",
	Long:  `Runs the engine against a single conversation, one turn per line of input. Type "exit" to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine(cmd, nil)
		if err != nil {
			return err
		}

		conversationID, _ := cmd.Flags().GetString("conversation")
		if conversationID == "" {
			conversationID = "conv-" + uuid.NewString()[:8]
		}

		fmt.Printf("caseflow chat (conversation %s). Type \"exit\" to quit.\n", conversationID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				break
			}

			outcome, err := engine.Handle(cmd.Context(), domain.Message{
				ConversationID: conversationID,
				Text:           text,
				Timestamp:      time.Now().Unix(),
			})
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}

			switch outcome.Type {
			case domain.OutcomeAwaitingConfirmation:
				fmt.Println(outcome.Prompt)
			case domain.OutcomeError:
				if outcome.Retryable {
					fmt.Println("Something went wrong on our side. Try that again.")
				} else {
					fmt.Println("That request was declined.")
				}
			default:
				fmt.Println(outcome.Text)
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("conversation", "c", "", "Conversation ID to use (random when empty)")
}
