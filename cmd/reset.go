package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a student's tutoring sessions",
	Long:  "Deletes all chat sessions (messages, progress summaries, and learning patterns) for the given student. The account itself is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		user, err := s.Users().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("look up user: %w", err)
		}

		n, err := s.Sessions().DeleteByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}

		fmt.Printf("Deleted %d session(s) for %s.\n", n, email)
		return nil
	},
}

func init() {
	resetCmd.Flags().String("email", "", "Email of the student to reset")
}
