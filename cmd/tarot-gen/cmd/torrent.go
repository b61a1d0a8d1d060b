package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-tarot-gen/internal/downloader"
	"go-tarot-gen/internal/helpers"
)

const torrentPieceLength = 512 * 1024

var (
	announceURLs      []string
	torrentOutputDir  string
	overwriteTorrents bool
	generateMagnet    bool
)

var torrentCmd = &cobra.Command{
	Use:   "torrent [DECK_DIR...]",
	Short: "Package generated decks as .torrent files",
	Long: `Builds BitTorrent metainfo for one or more deck output directories (default:
OutputPath from config), so a finished deck can be shared as a single torrent.
Stray .tmp files are left out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := args
		if len(dirs) == 0 {
			dirs = []string{globalConfig.OutputPath}
		}

		var failed int
		for _, dir := range dirs {
			path, magnet, err := generateTorrentFile(dir, announceURLs, torrentOutputDir, overwriteTorrents, generateMagnet)
			if err != nil {
				log.WithError(err).WithField("directory", dir).Error("Failed to generate torrent")
				failed++
				continue
			}
			if path == "" {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if magnet != "" {
				fmt.Fprintln(cmd.OutOrStdout(), magnet)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d torrents failed to generate", failed, len(dirs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(torrentCmd)

	torrentCmd.Flags().StringSliceVar(&announceURLs, "announce", []string{}, "Tracker announce URL (repeatable)")
	torrentCmd.Flags().StringVarP(&torrentOutputDir, "output-dir", "o", "", "Directory for the .torrent files (default: next to the deck directory)")
	torrentCmd.Flags().BoolVarP(&overwriteTorrents, "overwrite", "f", false, "Overwrite existing .torrent files")
	torrentCmd.Flags().BoolVar(&generateMagnet, "magnet-links", false, "Also write a -magnet.txt file with the magnet link")
}

// generateTorrentFile writes <deck>.torrent for sourceDir and returns its path
// and, when requested, the magnet link. An existing torrent is kept unless
// overwrite is set, in which case the returned path is empty.
func generateTorrentFile(sourceDir string, trackers []string, outputDir string, overwrite, withMagnet bool) (string, string, error) {
	stat, err := os.Stat(sourceDir)
	if err != nil {
		return "", "", fmt.Errorf("deck directory %s: %w", sourceDir, err)
	}
	if !stat.IsDir() {
		return "", "", fmt.Errorf("deck path is not a directory: %s", sourceDir)
	}
	absDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", "", err
	}
	name := filepath.Base(absDir)

	// The torrent sits outside the deck so it is not part of its own payload.
	if outputDir == "" {
		outputDir = filepath.Dir(absDir)
	}
	if !helpers.CheckAndMakeDir(outputDir) {
		return "", "", fmt.Errorf("cannot create output directory %s", outputDir)
	}
	outPath := filepath.Join(outputDir, name+".torrent")
	if _, err := os.Stat(outPath); err == nil && !overwrite {
		log.WithField("path", outPath).Info("Skipping existing torrent file (use --overwrite to replace)")
		return "", "", nil
	}

	mi := metainfo.MetaInfo{AnnounceList: make([][]string, len(trackers))}
	for i, tracker := range trackers {
		mi.AnnounceList[i] = []string{tracker}
	}
	if len(trackers) > 0 {
		mi.Announce = trackers[0]
	}
	mi.CreatedBy = "go-tarot-gen"
	mi.Comment = "Generated deck " + name

	info := metainfo.Info{PieceLength: torrentPieceLength}
	if err := info.BuildFromFilePath(absDir); err != nil {
		return "", "", fmt.Errorf("building torrent info from %s: %w", absDir, err)
	}
	info.Files = withoutTempFiles(info.Files)
	if len(info.Files) == 0 {
		return "", "", errors.New("deck directory has no files to share")
	}
	if err := info.GeneratePieces(func(fi metainfo.FileInfo) (io.ReadCloser, error) {
		return os.Open(filepath.Join(append([]string{absDir}, fi.Path...)...))
	}); err != nil {
		return "", "", fmt.Errorf("hashing deck files: %w", err)
	}

	if mi.InfoBytes, err = bencode.Marshal(info); err != nil {
		return "", "", fmt.Errorf("marshaling torrent info: %w", err)
	}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return "", "", fmt.Errorf("encoding torrent: %w", err)
	}
	if err := downloader.SaveFile(outPath, buf.Bytes()); err != nil {
		return "", "", err
	}
	log.WithFields(log.Fields{"path": outPath, "files": len(info.Files), "size": helpers.BytesToSize(uint64(info.TotalLength()))}).Info("Generated torrent file")

	if !withMagnet {
		return outPath, "", nil
	}
	magnetParts := []string{
		fmt.Sprintf("magnet:?xt=urn:btih:%s", mi.HashInfoBytes().HexString()),
		fmt.Sprintf("dn=%s", url.QueryEscape(name)),
	}
	for _, tracker := range trackers {
		magnetParts = append(magnetParts, fmt.Sprintf("tr=%s", url.QueryEscape(tracker)))
	}
	magnet := strings.Join(magnetParts, "&")
	magnetPath := strings.TrimSuffix(outPath, ".torrent") + "-magnet.txt"
	if err := downloader.SaveFile(magnetPath, []byte(magnet+"\n")); err != nil {
		log.WithError(err).WithField("path", magnetPath).Error("Failed to write magnet link file")
	}
	return outPath, magnet, nil
}

func withoutTempFiles(files []metainfo.FileInfo) []metainfo.FileInfo {
	kept := files[:0]
	for _, fi := range files {
		if len(fi.Path) > 0 && strings.HasSuffix(fi.Path[len(fi.Path)-1], ".tmp") {
			continue
		}
		kept = append(kept, fi)
	}
	return kept
}
