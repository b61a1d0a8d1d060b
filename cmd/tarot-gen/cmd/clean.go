package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringP("output", "o", "", "Directory to clean (default: OutputPath from config)")
	cleanCmd.Flags().BoolP("torrents", "t", false, "Also remove *.torrent files")
	cleanCmd.Flags().BoolP("magnets", "m", false, "Also remove *-magnet.txt files")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary (.tmp) files left by interrupted generations",
	Long: `Recursively scans the deck output directory and removes any files ending with
the .tmp extension. Optionally removes *.torrent and *-magnet.txt files as well.`,
	RunE: runClean,
}

type cleanCounts struct {
	tmp, torrents, magnets, failed int
}

func runClean(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("output")
	if root == "" {
		root = globalConfig.OutputPath
	}
	withTorrents, _ := cmd.Flags().GetBool("torrents")
	withMagnets, _ := cmd.Flags().GetBool("magnets")

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("accessing output directory %q: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", root)
	}

	log.Infof("Scanning for leftover files in %s...", root)
	counts, walkErr := cleanDir(root, withTorrents, withMagnets)
	if walkErr != nil {
		log.Errorf("Error during directory walk of %q: %v", root, walkErr)
	}

	var parts []string
	if counts.tmp > 0 {
		parts = append(parts, fmt.Sprintf("%d .tmp file(s)", counts.tmp))
	}
	if counts.torrents > 0 {
		parts = append(parts, fmt.Sprintf("%d .torrent file(s)", counts.torrents))
	}
	if counts.magnets > 0 {
		parts = append(parts, fmt.Sprintf("%d -magnet.txt file(s)", counts.magnets))
	}
	summary := "Clean complete. Removed: 0 files"
	if len(parts) > 0 {
		summary = "Clean complete. Removed: " + strings.Join(parts, ", ")
	}
	log.Info(summary)

	if counts.failed > 0 {
		return fmt.Errorf("failed to remove %d file(s)", counts.failed)
	}
	return walkErr
}

// cleanDir removes temp files under root, plus torrent and magnet files when asked.
func cleanDir(root string, withTorrents, withMagnets bool) (cleanCounts, error) {
	var counts cleanCounts
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Error accessing path %q during scan: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := strings.ToLower(d.Name())
		var counter *int
		switch {
		case strings.HasSuffix(name, ".tmp"):
			counter = &counts.tmp
		case withTorrents && strings.HasSuffix(name, ".torrent"):
			counter = &counts.torrents
		case withMagnets && strings.HasSuffix(name, "-magnet.txt"):
			counter = &counts.magnets
		default:
			return nil
		}

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			log.Errorf("Failed to remove %q: %v", path, err)
			counts.failed++
			return nil
		}
		log.Infof("Removed %s", path)
		*counter++
		return nil
	})
	return counts, err
}
