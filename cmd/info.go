// cmd/info.go - MBTiles inspection command
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valpere/aoi_to_mbtiles/internal/mbtiles"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <file.mbtiles>",
	Short: "Print metadata, tile count and content digest of an MBTiles file",
	Long: `Print the metadata table, the number of tiles and an xxhash64 digest of the tiles
table. Two containers holding the same tiles print the same digest, whatever
order the tiles were inserted in.

Example:
  aoi-to-mbtiles info area_osm.mbtiles`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	reader, err := mbtiles.Open(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()
	metadata, err := reader.Metadata(ctx)
	if err != nil {
		return err
	}
	count, err := reader.Count(ctx)
	if err != nil {
		return err
	}
	digest, err := reader.Digest(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "%-12s %s\n", k+":", metadata[k])
	}
	fmt.Fprintf(os.Stdout, "%-12s %d\n", "tiles:", count)
	fmt.Fprintf(os.Stdout, "%-12s %016x\n", "digest:", digest)
	return nil
}
