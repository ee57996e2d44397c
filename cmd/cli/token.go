package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tokenCmd represents the root command for all token operations.
// tokenCmd 代表所有令牌操作的根命令。
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and check access tokens",
}

// tokenIssueCmd requests a fresh access token for a consumer.
var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a fresh access token for a consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		callerID, _ := cmd.Flags().GetString("caller")
		name, _ := cmd.Flags().GetString("name")
		uniqueName, _ := cmd.Flags().GetString("unique-name")
		if callerID == "" {
			return fmt.Errorf("caller flag is required")
		}

		token, err := apiClient().IssueToken(cmd.Context(), callerID, name, uniqueName)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}

		fmt.Printf("Access token (%s, expires in %d seconds):\n", token.TokenType, token.ExpiresIn)
		fmt.Println(token.AccessToken)
		return nil
	},
}

// tokenValidateCmd checks a presented token. An invalid token is reported as
// a command error so scripts see a non-zero exit.
var tokenValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a token against its caller's current signing credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		callerID, _ := cmd.Flags().GetString("caller")
		token, _ := cmd.Flags().GetString("token")
		if callerID == "" || token == "" {
			return fmt.Errorf("caller and token flags are required")
		}

		result, err := apiClient().ValidateToken(cmd.Context(), callerID, token)
		if err != nil {
			return fmt.Errorf("failed to validate token: %w", err)
		}
		if !result.Valid {
			return fmt.Errorf("token is invalid: %s", result.Reason)
		}

		fmt.Println("Token is valid.")
		for claim, value := range result.Claims {
			fmt.Printf("- %s: %v\n", claim, value)
		}
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().String("caller", "", "Consumer the token is issued for")
	tokenIssueCmd.Flags().String("name", "", "Optional display name claim")
	tokenIssueCmd.Flags().String("unique-name", "", "Optional unique name claim")

	tokenValidateCmd.Flags().String("caller", "", "Consumer the token was issued for")
	tokenValidateCmd.Flags().String("token", "", "Token to check")

	tokenCmd.AddCommand(tokenIssueCmd, tokenValidateCmd)
	rootCmd.AddCommand(tokenCmd)
}
