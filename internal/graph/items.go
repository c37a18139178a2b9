package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// listChildrenPageSize is the $top value for ListChildren requests.
// 200 is the maximum allowed by the Graph API for drive item collections.
const listChildrenPageSize = 200

// Reasons an entry is dropped from a listing instead of failing it.
var (
	errMissingID   = errors.New("missing id")
	errMissingName = errors.New("missing name")
	errNoFacet     = errors.New("neither file nor folder facet")
	errBothFacets  = errors.New("both file and folder facets")
)

// driveItemResponse mirrors the subset of the Graph driveItem JSON that the
// browser needs. Unexported; callers use Item via toItem().
type driveItemResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	File        *fileFacet   `json:"file"`
	Folder      *folderFacet `json:"folder"`
	DownloadURL string       `json:"@microsoft.graph.downloadUrl"` //nolint:tagliatelle // Graph API annotation key
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

type folderFacet struct {
	ChildCount *int `json:"childCount"`
}

type listChildrenResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// toItem normalizes a Graph API driveItem response into our Item type.
// The presence of the folder or file facet is the kind discriminator;
// entries that carry neither or both are rejected.
func (d *driveItemResponse) toItem() (Item, error) {
	switch {
	case d.ID == "":
		return Item{}, errMissingID
	case d.Name == "":
		return Item{}, errMissingName
	case d.File == nil && d.Folder == nil:
		return Item{}, errNoFacet
	case d.File != nil && d.Folder != nil:
		return Item{}, errBothFacets
	}

	item := Item{
		ID:          d.ID,
		Name:        d.Name,
		IsFolder:    d.Folder != nil,
		ChildCount:  ChildCountUnknown,
		DownloadURL: DownloadURL(d.DownloadURL),
	}

	if d.Folder != nil && d.Folder.ChildCount != nil {
		item.ChildCount = *d.Folder.ChildCount
	}

	if d.File != nil {
		item.MimeType = d.File.MimeType
	}

	return item, nil
}

// childrenPath returns the API path listing the children of parentID.
func childrenPath(parentID string) string {
	if parentID == RootID {
		return fmt.Sprintf("/me/drive/root/children?$top=%d", listChildrenPageSize)
	}

	return fmt.Sprintf("/me/drive/items/%s/children?$top=%d", url.PathEscape(parentID), listChildrenPageSize)
}

// ListChildren returns the children of parentID in the order the API returns
// them, following pagination. Pass RootID for the drive root. Malformed
// entries are dropped; a non-2xx response fails the whole call.
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]Item, error) {
	c.logger.Info("listing children", slog.String("parent_id", parentID))

	var raw []driveItemResponse

	apiPath := childrenPath(parentID)
	page := 1

	for apiPath != "" {
		var lcr listChildrenResponse
		if err := c.api.GetJSON(ctx, apiPath, &lcr); err != nil {
			return nil, fmt.Errorf("graph: listing children of %s: %w", parentID, err)
		}

		c.logger.Debug("fetched children page",
			slog.Int("page", page),
			slog.Int("count", len(lcr.Value)),
		)

		raw = append(raw, lcr.Value...)

		apiPath = ""

		if lcr.NextLink != "" {
			next, err := c.stripBaseURL(lcr.NextLink)
			if err != nil {
				return nil, err
			}

			apiPath = next
		}

		page++
	}

	items := normalizeItems(raw, c.logger)

	c.logger.Info("listed children complete",
		slog.String("parent_id", parentID),
		slog.Int("total_items", len(items)),
	)

	return items, nil
}

// stripBaseURL removes the client's base URL prefix from a full URL,
// returning the path + query string for the next request.
// Returns an error if the URL doesn't start with the expected base.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	base := c.api.BaseURL()
	if !strings.HasPrefix(fullURL, base) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, base)
	}

	return fullURL[len(base):], nil
}
