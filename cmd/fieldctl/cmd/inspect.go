package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Resolve a token key and show its claims and round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Token string `json:"token"`
			Round struct {
				Number   int       `json:"number"`
				Name     string    `json:"name"`
				Theme    string    `json:"theme"`
				StartsAt time.Time `json:"starts_at"`
				EndsAt   time.Time `json:"ends_at"`
			} `json:"round"`
		}
		err := newAPIClient().do(cmd.Context(), http.MethodGet, "/credentials/"+args[0], nil, &resp)
		if err != nil {
			return err
		}

		fmt.Println(okFmt("token is live"))
		fmt.Printf("round:   %d %s\n", resp.Round.Number, resp.Round.Name)
		if resp.Round.Theme != "" {
			fmt.Println("theme:  ", resp.Round.Theme)
		}
		fmt.Printf("window:  %s .. %s\n",
			resp.Round.StartsAt.Format("2006-01-02"), resp.Round.EndsAt.Format("2006-01-02"))

		if claims, err := decodeClaims(resp.Token); err == nil {
			fmt.Println("claims: ", dimFmt(claims))
		}
		return nil
	},
}

// decodeClaims renders the JWT payload without verifying it; inspect is a
// read-only operator aid.
func decodeClaims(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("not a JWT")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	var compact map[string]any
	if err := json.Unmarshal(raw, &compact); err != nil {
		return "", err
	}
	pretty, err := json.Marshal(compact)
	return string(pretty), err
}
