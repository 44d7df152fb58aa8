package domain

import "fmt"

// AlgorithmMusic serves every post that shared a music link, newest first.
const AlgorithmMusic = "music"

// FeedConfig describes a single feed served by this generator.
type FeedConfig struct {
	// URI is the AT-URI of the feed generator record.
	URI string

	// Algorithm is the record key of the feed, which selects how it is built.
	Algorithm string
}

// FeedConfigs returns the feeds published by publisherDID.
func FeedConfigs(publisherDID string) []FeedConfig {
	return []FeedConfig{
		NewFeedConfig(publisherDID, AlgorithmMusic),
	}
}

// NewFeedConfig builds the config for a feed published under publisherDID.
func NewFeedConfig(publisherDID, algorithm string) FeedConfig {
	return FeedConfig{
		URI:       ATURI{DID: publisherDID, Collection: GeneratorCollection, RKey: algorithm}.String(),
		Algorithm: algorithm,
	}
}

func (c FeedConfig) validate() error {
	switch c.Algorithm {
	case AlgorithmMusic:
		return nil
	default:
		return fmt.Errorf("feed %s: unsupported algorithm %q", c.URI, c.Algorithm)
	}
}

// FeedSkeleton is the response body for getFeedSkeleton.
type FeedSkeleton struct {
	// Cursor is empty when there are no more posts.
	Cursor string
	Posts  []SkeletonPost
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string
}

// FeedDescription describes a single feed served by this generator.
type FeedDescription struct {
	// URI is the AT-URI of the feed generator record.
	URI string
}

// GeneratorDescription is the response body for describeFeedGenerator.
type GeneratorDescription struct {
	DID   string
	Feeds []FeedDescription
}
