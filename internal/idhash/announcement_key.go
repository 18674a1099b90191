package idhash

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"

	"announcement-radar/internal/domain"
)

// keySeparator cannot appear in URLs or titles, so joined parts never collide.
const keySeparator = "\x00"

// ComputeSeenKey computes the category-independent dedup key of an article.
// Formula: base58(SHA256(url|title)). Parts are hashed as given; raws are
// trimmed once when they enter a poll cycle.
func ComputeSeenKey(url, title string) string {
	return compute("seen", url, title)
}

// ComputeAnnouncementKey computes the durable dedup key of an announcement row.
// Formula: base58(SHA256(url|type)), mirroring the (url, type) unique constraint.
func ComputeAnnouncementKey(url string, category domain.Category) string {
	return compute("announcement", url, string(category))
}

func compute(kind string, parts ...string) string {
	data := kind + keySeparator + strings.Join(parts, keySeparator)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
