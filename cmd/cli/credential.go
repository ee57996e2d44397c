package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// credentialCmd represents the consumer credential commands
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage consumer signing credentials",
}

// credentialProvisionCmd provisions a fresh signing credential. The secret is
// printed exactly once and cannot be retrieved again.
var credentialProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a fresh signing credential for a consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumerID, _ := cmd.Flags().GetString("consumer")
		idempotencyKey, _ := cmd.Flags().GetString("idempotency-key")
		if consumerID == "" {
			return fmt.Errorf("consumer flag is required")
		}

		cred, err := apiClient().ProvisionCredential(cmd.Context(), consumerID, idempotencyKey)
		if err != nil {
			return fmt.Errorf("failed to provision credential: %w", err)
		}

		fmt.Printf("Provisioned credential for %s:\n", cred.ConsumerID)
		fmt.Printf("- Key:    %s\n", cred.Key)
		fmt.Printf("- Secret: %s\n", cred.Secret)
		fmt.Println("Store the secret now, it is not retrievable again.")
		return nil
	},
}

func init() {
	credentialProvisionCmd.Flags().String("consumer", "", "Consumer to provision")
	credentialProvisionCmd.Flags().String("idempotency-key", "", "Optional key for duplicate-submit detection")

	credentialCmd.AddCommand(credentialProvisionCmd)
	rootCmd.AddCommand(credentialCmd)
}
