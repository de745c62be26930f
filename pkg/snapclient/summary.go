package snapclient

import (
	"fmt"
	"io"
	"strconv"

	"github.com/function61/snapshoot/pkg/snapengine"
	"github.com/olekukonko/tablewriter"
)

func printSummary(output io.Writer, today string, stats snapengine.Stats) {
	fmt.Fprintf(output, "Snapshot %s\n\n", today)

	tbl := tablewriter.NewWriter(output)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetHeader([]string{"", "Entries", "Size"})

	tbl.Append([]string{"Directories", strconv.FormatInt(stats.Directories, 10), ""})
	tbl.Append([]string{"Copied", strconv.FormatInt(stats.FilesCopied, 10), humanizeBytes(stats.BytesCopied)})
	tbl.Append([]string{"Unchanged (linked)", strconv.FormatInt(stats.FilesLinked, 10), humanizeBytes(stats.BytesLinked)})
	tbl.Append([]string{"Symlinks", strconv.FormatInt(stats.Symlinks, 10), ""})
	tbl.Append([]string{"Skipped", strconv.FormatInt(stats.Skipped, 10), ""})
	tbl.Append([]string{"Hashed", "", humanizeBytes(stats.BytesHashed)})

	tbl.Render()
}

func oneLineSummary(today string, stats snapengine.Stats) string {
	return fmt.Sprintf(
		"snapshot %s: %d copied (%s), %d linked (%s), %d dirs, %d symlinks, %d skipped",
		today,
		stats.FilesCopied,
		humanizeBytes(stats.BytesCopied),
		stats.FilesLinked,
		humanizeBytes(stats.BytesLinked),
		stats.Directories,
		stats.Symlinks,
		stats.Skipped)
}

var byteUnits = []string{"kiB", "MiB", "GiB", "TiB", "PiB"}

func humanizeBytes(num int64) string {
	if num < 1024 {
		return fmt.Sprintf("%d B", num)
	}

	value := float64(num) / 1024
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	return fmt.Sprintf("%.02f %s", value, byteUnits[unit])
}
