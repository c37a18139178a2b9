package graph

import (
	"log/slog"
	"net/url"

	"golang.org/x/text/unicode/norm"
)

// normalizeItems converts a raw listing into Items. The pipeline runs in a
// fixed order:
//  1. Drop malformed entries (no id, no name, ambiguous kind)
//  2. URL-decode names (Graph sometimes returns %20-encoded names)
//  3. NFC-normalize names so macOS-originated NFD names compare equal
//  4. Drop repeated ids, keeping the first occurrence
//
// The relative order of surviving entries is the API's order.
func normalizeItems(raw []driveItemResponse, logger *slog.Logger) []Item {
	items := make([]Item, 0, len(raw))
	dropped := 0

	for i := range raw {
		item, err := raw[i].toItem()
		if err != nil {
			logger.Warn("dropping malformed directory entry",
				slog.String("item_id", raw[i].ID),
				slog.String("reason", err.Error()),
			)

			dropped++

			continue
		}

		items = append(items, item)
	}

	if dropped > 0 {
		logger.Info("dropped malformed entries from listing",
			slog.Int("dropped_count", dropped),
			slog.Int("remaining_count", len(items)),
		)
	}

	items = decodeURLEncodedNames(items, logger)
	items = normalizeNames(items)

	return deduplicateItems(items, logger)
}

// decodeURLEncodedNames applies url.PathUnescape to item names. A name
// that fails to unescape is kept verbatim.
func decodeURLEncodedNames(items []Item, logger *slog.Logger) []Item {
	for i := range items {
		unescaped, err := url.PathUnescape(items[i].Name)
		if err != nil {
			logger.Debug("failed to URL-decode item name, keeping original",
				slog.String("item_id", items[i].ID),
				slog.String("error", err.Error()),
			)

			continue
		}

		if unescaped != items[i].Name {
			logger.Debug("URL-decoded item name",
				slog.String("item_id", items[i].ID),
				slog.String("encoded", items[i].Name),
				slog.String("decoded", unescaped),
			)

			items[i].Name = unescaped
		}
	}

	return items
}

func normalizeNames(items []Item) []Item {
	for i := range items {
		items[i].Name = norm.NFC.String(items[i].Name)
	}

	return items
}

// deduplicateItems removes repeated item IDs, keeping only the first
// occurrence.
func deduplicateItems(items []Item, logger *slog.Logger) []Item {
	seen := make(map[string]bool, len(items))
	kept := items[:0]

	for i := range items {
		if seen[items[i].ID] {
			logger.Debug("dropping repeated item id",
				slog.String("item_id", items[i].ID),
			)

			continue
		}

		seen[items[i].ID] = true
		kept = append(kept, items[i])
	}

	return kept
}
