package assembler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	xerrors "xscraper/pkg/errors"
)

// Wire shapes shared by the GraphQL "legacy" objects, REST v1.1 and the
// embed endpoint.

type legacyTweet struct {
	IDStr            string      `json:"id_str"`
	FullText         string      `json:"full_text"`
	Text             string      `json:"text"`
	CreatedAt        string      `json:"created_at"`
	Lang             string      `json:"lang"`
	FavoriteCount    count       `json:"favorite_count"`
	RetweetCount     count       `json:"retweet_count"`
	ReplyCount       count       `json:"reply_count"`
	QuoteCount       count       `json:"quote_count"`
	Entities         entities    `json:"entities"`
	ExtendedEntities entities    `json:"extended_entities"`
	User             *legacyUser `json:"user"`
}

func (t *legacyTweet) text() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// media prefers extended_entities, which lists every attachment
func (t *legacyTweet) media() []legacyMedia {
	if len(t.ExtendedEntities.Media) > 0 {
		return t.ExtendedEntities.Media
	}
	return t.Entities.Media
}

type entities struct {
	Media []legacyMedia `json:"media"`
}

type legacyMedia struct {
	Type          string     `json:"type"`
	MediaURLHTTPS string     `json:"media_url_https"`
	VideoInfo     *videoInfo `json:"video_info"`
}

type videoInfo struct {
	Variants []variant `json:"variants"`
}

// variant is one encoding of a video. GraphQL and v1.1 spell the rate
// "bitrate", v2 spells it "bit_rate"; streaming playlists carry neither.
type variant struct {
	Bitrate     *int   `json:"bitrate"`
	BitRate     *int   `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

func (v variant) rate() (int, bool) {
	switch {
	case v.Bitrate != nil:
		return *v.Bitrate, true
	case v.BitRate != nil:
		return *v.BitRate, true
	default:
		return 0, false
	}
}

type legacyUser struct {
	IDStr                string  `json:"id_str"`
	Name                 string  `json:"name"`
	ScreenName           string  `json:"screen_name"`
	CreatedAt            string  `json:"created_at"`
	Location             string  `json:"location"`
	Description          string  `json:"description"`
	URL                  *string `json:"url"`
	ProfileImageURLHTTPS string  `json:"profile_image_url_https"`
	FollowersCount       count   `json:"followers_count"`
	FriendsCount         count   `json:"friends_count"`
	StatusesCount        count   `json:"statuses_count"`
	ListedCount          count   `json:"listed_count"`
	Verified             bool    `json:"verified"`
	Entities             struct {
		URL struct {
			URLs []struct {
				ExpandedURL string `json:"expanded_url"`
			} `json:"urls"`
		} `json:"url"`
	} `json:"entities"`
}

// GraphQL envelopes

type tweetEnvelope struct {
	Data struct {
		TweetResult struct {
			Result *tweetResult `json:"result"`
		} `json:"tweetResult"`
	} `json:"data"`
}

type tweetResult struct {
	Typename string       `json:"__typename"`
	RestID   string       `json:"rest_id"`
	Tweet    *tweetResult `json:"tweet"`
	Core     struct {
		UserResults struct {
			Result *userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy *legacyTweet `json:"legacy"`
}

// unwrap descends into the visibility wrapper some posts are delivered in
func (r *tweetResult) unwrap() *tweetResult {
	if r != nil && r.Legacy == nil && r.Tweet != nil {
		return r.Tweet
	}
	return r
}

type userEnvelope struct {
	Data struct {
		User struct {
			Result *userResult `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type userResult struct {
	Typename string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Core     *struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"core"`
	Avatar *struct {
		ImageURL string `json:"image_url"`
	} `json:"avatar"`
	IsBlueVerified bool        `json:"is_blue_verified"`
	Legacy         *legacyUser `json:"legacy"`
}

// REST v2

type v2TweetResponse struct {
	Data     []v2Tweet  `json:"data"`
	Includes v2Includes `json:"includes"`
}

type v2UserResponse struct {
	Data []v2User `json:"data"`
}

type v2Includes struct {
	Media []v2Media `json:"media"`
	Users []v2User  `json:"users"`
}

type v2Tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	AuthorID      string `json:"author_id"`
	PublicMetrics struct {
		LikeCount    count `json:"like_count"`
		RetweetCount count `json:"retweet_count"`
		ReplyCount   count `json:"reply_count"`
		QuoteCount   count `json:"quote_count"`
	} `json:"public_metrics"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type v2Media struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Variants        []variant `json:"variants"`
}

type v2User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	CreatedAt       string `json:"created_at"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	ProfileImageURL string `json:"profile_image_url"`
	Verified        bool   `json:"verified"`
	PublicMetrics   struct {
		FollowersCount count `json:"followers_count"`
		FollowingCount count `json:"following_count"`
		TweetCount     count `json:"tweet_count"`
		ListedCount    count `json:"listed_count"`
	} `json:"public_metrics"`
}

// embed endpoint

type embedTweet struct {
	Typename          string        `json:"__typename"`
	IDStr             string        `json:"id_str"`
	Text              string        `json:"text"`
	CreatedAt         string        `json:"created_at"`
	Lang              string        `json:"lang"`
	FavoriteCount     count         `json:"favorite_count"`
	ConversationCount count         `json:"conversation_count"`
	User              *legacyUser   `json:"user"`
	MediaDetails      []legacyMedia `json:"mediaDetails"`
}

// decode converts a generic JSON document into v. A top-level array stands
// for its first element.
func decode(data any, v any) error {
	var raw []byte
	switch d := data.(type) {
	case []byte:
		raw = d
	case json.RawMessage:
		raw = d
	default:
		if arr, ok := d.([]any); ok {
			if len(arr) == 0 {
				return &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: "empty payload array"}
			}
			data = arr[0]
		}
		b, err := json.Marshal(data)
		if err != nil {
			return &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("failed to re-encode payload: %v", err)}
		}
		raw = b
	}

	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
			return &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: "empty payload array"}
		}
		raw = arr[0]
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("failed to parse payload: %v", err)}
	}
	return nil
}

var timeLayouts = []string{
	time.RubyDate,
	time.RFC3339Nano,
	time.RFC3339,
}

// parseTime reads the platform's Ruby-style dates and ISO 8601. Unparseable
// input yields the zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
