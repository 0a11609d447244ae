package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/medassist/vha/internal/pipeline"
)

func chatCmd() *cobra.Command {
	var sessionID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one triage turn from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg.Store)
			if err != nil {
				return err
			}
			defer closeStore()

			pipe, err := pipeline.Build(cmd.Context(), cfg, store)
			if err != nil {
				return err
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			payload, err := pipe.HandleTurn(cmd.Context(), sessionID, strings.Join(args, " "))
			if err != nil {
				warn(err)
				if payload.Error == "" {
					payload.Error = "your response could not be saved to history"
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			fmt.Printf("[%s urgency, score %d] %s\n", payload.TriageLevel, payload.UrgencyScore, payload.Message)
			fmt.Printf("session: %s\n", payload.SessionID)
			if payload.Error != "" {
				fmt.Printf("warning: %s\n", payload.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue (new session if empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response payload as JSON")
	return cmd
}
