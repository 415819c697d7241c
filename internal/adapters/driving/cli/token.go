package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token [account-id]",
	Short: "Issue a session token",
	Long: `Issues a session token for an account. Peer servers accept the token
in the "Authorization: Token <token>" header of delegated crawls.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenIssuer == nil {
		return errors.New("token issuer not configured")
	}

	token, err := tokenIssuer.Issue(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	cmd.Println(token)
	return nil
}
