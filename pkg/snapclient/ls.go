package snapclient

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/function61/gokit/osutil"
	"github.com/function61/snapshoot/pkg/snapdate"
	"github.com/function61/snapshoot/pkg/snapinit"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func lsEntrypoint() *cobra.Command {
	destination := ""

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Lists snapshots in a destination",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(ls(os.Stdout, destination))
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", destination, "Destination folder (required)")
	_ = cmd.MarkFlagRequired("destination")

	return cmd
}

func ls(output io.Writer, destination string) error {
	marker, err := snapinit.BoundMarker(destination)
	if err != nil {
		return err
	}

	if marker == "" {
		return fmt.Errorf("%s is not a snapshoot destination", destination)
	}

	dates, err := snapdate.List(destination)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "marker: %s\n\n", marker)

	tbl := tablewriter.NewWriter(output)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetHeader([]string{"Snapshot", "Path"})

	for _, date := range dates {
		tbl.Append([]string{date, filepath.Join(destination, date)})
	}

	tbl.Render()

	return nil
}
