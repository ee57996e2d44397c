package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the credential cache commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the credential cache",
}

// cacheFlushCmd drops every cached credential.
var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop every cached credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().FlushCredentials(cmd.Context()); err != nil {
			return fmt.Errorf("failed to flush cache: %w", err)
		}
		fmt.Println("Cache flushed.")
		return nil
	},
}

// cacheEvictCmd drops one consumer's cached credential, forcing the next
// lookup back to the upstream.
var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Drop one consumer's cached credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumerID, _ := cmd.Flags().GetString("consumer")
		if consumerID == "" {
			return fmt.Errorf("consumer flag is required")
		}

		if err := apiClient().EvictCredential(cmd.Context(), consumerID); err != nil {
			return fmt.Errorf("failed to evict cached credential: %w", err)
		}
		fmt.Printf("Evicted cached credential for %s.\n", consumerID)
		return nil
	},
}

func init() {
	cacheEvictCmd.Flags().String("consumer", "", "Consumer whose cached credential is dropped")

	cacheCmd.AddCommand(cacheFlushCmd, cacheEvictCmd)
	rootCmd.AddCommand(cacheCmd)
}
