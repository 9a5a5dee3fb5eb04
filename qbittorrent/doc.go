// Package qbittorrent provides a minimal client for the qBittorrent Web API.
//
// Only the three calls needed to retire a finished torrent are implemented:
// logging in, listing the files of a torrent and deleting it. All requests
// are form-encoded POSTs; the session (SID) obtained from Login is passed
// explicitly to every later call.
//
// # Usage
//
//	client, err := qbittorrent.NewClient(url, username, password, classifier, logger,
//		qbittorrent.WithDownloadRoot("/downloads"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sid, err := client.Login(ctx)
//	files, err := client.ListFiles(ctx, sid, hash)
//	err = client.Delete(ctx, sid, hash, false)
//
// # Errors
//
// Failures are classified with ErrAuthentication, ErrTransport and ErrDelete,
// which can be checked with errors.Is. A file list that cannot be decoded is
// reported as *DecodeError carrying the raw body.
package qbittorrent
