// Package zip builds in-memory zip archives of generated tracks.
package zip

import (
	"archive/zip"
	"bytes"
)

type Track struct {
	Filename string
	Data     []byte
}

// ArchiveTracks packs the given tracks into a single zip blob. Tracks with
// no data are skipped.
func ArchiveTracks(tracks []Track) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, track := range tracks {
		if len(track.Data) == 0 {
			continue
		}
		w, err := zw.Create(track.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(track.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
