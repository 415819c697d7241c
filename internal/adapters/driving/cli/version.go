package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/mcp"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/rest"
)

var versionJSON bool

// versionInfo is what peers and operators compare when servers of a
// cluster disagree. The JSON form extends GET /version.
type versionInfo struct {
	Version    string `json:"version"`
	Delegation string `json:"delegation"`
	MCP        string `json:"mcp"`
	Go         string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and protocol versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versionInfo{
			Version:    version,
			Delegation: rest.RemoteFolderPath,
			MCP:        mcp.Version,
			Go:         runtime.Version(),
		}
		if versionJSON {
			data, err := json.Marshal(info)
			if err != nil {
				return fmt.Errorf("encode version: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Printf("addrcrawl %s (%s)\n", info.Version, info.Go)
		cmd.Printf("  delegation endpoint  %s\n", info.Delegation)
		cmd.Printf("  mcp server           %s\n", info.MCP)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(versionCmd)
}
