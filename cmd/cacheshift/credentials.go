package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/internal/store"
)

// credentialCmd manages store passwords in the OS keyring
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage store credentials in the OS keyring",
	Long: `Store a cache store password in the OS keyring so endpoints can carry a
"keyring:service/user" reference instead of an embedded password.`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <service> <user>",
	Short: "Prompt for a password and store it in the keyring",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, user := args[0], args[1]

		password, err := promptPassword(fmt.Sprintf("Password for %s/%s: ", service, user))
		if err != nil {
			return err
		}

		if err := store.StorePassword(service, user, password); err != nil {
			return err
		}

		fmt.Printf("Stored. Reference it in endpoints as keyring:%s/%s\n", service, user)
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd)
}
