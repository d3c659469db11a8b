package cli

import (
	"github.com/spf13/cobra"
)

var testAlertCmd = &cobra.Command{
	Use:   "test-alert",
	Short: "Send one synthetic buy alert to verify channel delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TestAlert(cmd.Context())
	},
}
