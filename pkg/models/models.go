package models

import (
	"fmt"
	"regexp"
	"time"

	xerrors "xscraper/pkg/errors"
)

type Kind string

const (
	KindPost   Kind = "post"
	KindAuthor Kind = "author"
)

type Source string

const (
	SourceGraphQL Source = "graphql"
	SourceRESTv1  Source = "rest_v1"
	SourceRESTv2  Source = "rest_v2"
	SourceEmbed   Source = "embed"
)

type MediaKind string

const (
	MediaPhoto         MediaKind = "photo"
	MediaVideo         MediaKind = "video"
	MediaAnimatedImage MediaKind = "animated_gif"
)

var identifierPattern = regexp.MustCompile(`^\d+$`)

// RetrievalRequest names a single resource to look up
type RetrievalRequest struct {
	ID   string
	Kind Kind
}

// Validate rejects ids that are not entirely ASCII digits
func (r RetrievalRequest) Validate() error {
	if !identifierPattern.MatchString(r.ID) {
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidIdentifier, xerrors.InvalidIdentifier(r.ID).Message)
	}
	return nil
}

func (r RetrievalRequest) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// RawPayload is the unparsed structured document a strategy produced
type RawPayload struct {
	Kind   Kind
	Source Source
	Data   any
	// Screenshot is a local image of the rendered page, when captured
	Screenshot string
}

type MediaRef struct {
	SourceURL string
	Kind      MediaKind
}

type MaterializedMedia struct {
	Kind      MediaKind `json:"kind" yaml:"kind"`
	SourceURL string    `json:"source_url" yaml:"source_url"`
	LocalPath string    `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

type Post struct {
	ID           string    `json:"id" yaml:"id"`
	Text         string    `json:"text" yaml:"text"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	Language     string    `json:"language,omitempty" yaml:"language,omitempty"`
	LikeCount    int       `json:"like_count" yaml:"like_count"`
	RetweetCount int       `json:"retweet_count" yaml:"retweet_count"`
	ReplyCount   int       `json:"reply_count" yaml:"reply_count"`
	QuoteCount   int       `json:"quote_count" yaml:"quote_count"`

	Images []MaterializedMedia `json:"images" yaml:"images"`
	Videos []MaterializedMedia `json:"videos" yaml:"videos"`
	// VideoPreview is the still frame belonging to the first video, if any
	VideoPreview  *MaterializedMedia `json:"video_preview,omitempty" yaml:"video_preview,omitempty"`
	VideoFileType MediaKind          `json:"video_file_type,omitempty" yaml:"video_file_type,omitempty"`

	ScreenshotFile string  `json:"screenshot_file,omitempty" yaml:"screenshot_file,omitempty"`
	Author         *Author `json:"author,omitempty" yaml:"author,omitempty"`
	Source         Source  `json:"source" yaml:"source"`
}

type Author struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Username        string    `json:"username" yaml:"username"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Location        string    `json:"location,omitempty" yaml:"location,omitempty"`
	Description     string    `json:"description,omitempty" yaml:"description,omitempty"`
	URL             string    `json:"url" yaml:"url"`
	ProfileImageURL string    `json:"profile_image_url" yaml:"profile_image_url"`
	FollowersCount  int       `json:"followers_count" yaml:"followers_count"`
	FollowingCount  int       `json:"following_count" yaml:"following_count"`
	TweetCount      int       `json:"tweet_count" yaml:"tweet_count"`
	ListedCount     int       `json:"listed_count" yaml:"listed_count"`
	Verified        bool      `json:"verified" yaml:"verified"`

	ProfileImage *MaterializedMedia `json:"profile_image,omitempty" yaml:"profile_image,omitempty"`
	Source       Source             `json:"source" yaml:"source"`
}

// HasMedia reports whether any image or video survived materialization
func (p *Post) HasMedia() bool {
	return len(p.Images) > 0 || len(p.Videos) > 0
}
