package qbittorrent

// TorrentFile is a single file of a torrent as reported by qBittorrent.
// IsMedia is never part of the API payload and is computed after retrieval.
type TorrentFile struct {
	Name    string `json:"name"`
	Size    uint64 `json:"size"`
	IsMedia bool   `json:"-"`
}

// MediaFiles returns the files flagged as media, preserving order
func MediaFiles(files []TorrentFile) []TorrentFile {
	var media []TorrentFile
	for _, f := range files {
		if f.IsMedia {
			media = append(media, f)
		}
	}
	return media
}
