package graph

import "log/slog"

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// Item is one remote directory entry, normalized from the Graph driveItem
// response. Exactly one of file or folder was present in the raw entry.
type Item struct {
	ID          string
	Name        string
	IsFolder    bool
	ChildCount  int         // folders only; ChildCountUnknown if not present
	MimeType    string      // files only, may be empty
	DownloadURL DownloadURL // files only, may be empty
}

// User is the signed-in account's profile, used as the requester identity
// on ingestion submissions.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// DownloadURL is a pre-authenticated, short-lived content URL. Anyone holding
// it can read the file, so it redacts itself when logged.
type DownloadURL string

// LogValue implements slog.LogValuer.
func (u DownloadURL) LogValue() slog.Value {
	if u == "" {
		return slog.StringValue("")
	}

	return slog.StringValue("[REDACTED]")
}
