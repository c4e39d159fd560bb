package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	revokeCmd.AddCommand(revokeTerritoryCmd)
	revokeCmd.AddCommand(revokeBlockCmd)
	rootCmd.AddCommand(revokeCmd)
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke capability tokens",
}

var revokeTerritoryCmd = &cobra.Command{
	Use:   "territory <territory-id>",
	Short: "Revoke a territory token and every block token under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Revoked int `json:"revoked"`
		}
		err := newAPIClient().do(cmd.Context(), http.MethodDelete, "/tokens/territory/"+args[0], nil, &resp)
		if err != nil {
			return err
		}
		fmt.Println(okFmt("territory revoked"), dimFmt(fmt.Sprintf("(%d tokens deleted)", resp.Revoked)))
		return nil
	},
}

var revokeBlockCmd = &cobra.Command{
	Use:   "block <territory-id> <block-id>",
	Short: "Revoke a single block token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newAPIClient().do(cmd.Context(), http.MethodDelete,
			"/tokens/territory/"+args[0]+"/block/"+args[1], nil, nil)
		if err != nil {
			return err
		}
		fmt.Println(okFmt("block token revoked"))
		return nil
	},
}
