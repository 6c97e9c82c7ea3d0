package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelguard/actiongate/internal/domain/credential"
)

var hashCredentialCmd = &cobra.Command{
	Use:   "hash-credential [secret]",
	Short: "Generate the stored hashes for a tenant secret",
	Long: `Generate both stored hashes of a tenant secret: the SHA-256 digest for
the tenants table's credential_hash column and the Argon2id hash for its
argon_hash column. Seed files take the plaintext secret and hash it at boot.

Example:
  actiongate hash-credential "my-secret-api-key"

Security note: the secret will appear in shell history. Consider clearing
history after use or passing it via an environment variable instead:
  actiongate hash-credential "$TENANT_SECRET"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		argonHash, err := credential.SecureHash(args[0])
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		fmt.Printf("credential_hash: %s\nargon_hash: %s\n", credential.Digest(args[0]), argonHash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCredentialCmd)
}
