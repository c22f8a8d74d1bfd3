package twitter

import (
	"math"
	"strconv"
	"strings"
)

const (
	TweetsV2Endpoint = "/2/tweets"
	UsersV2Endpoint  = "/2/users"
	StatusV1Endpoint = "/1.1/statuses/show.json"
	UserV1Endpoint   = "/1.1/users/show.json"
	EmbedEndpoint    = "/tweet-result"
)

// field selections sent with every v2 lookup
const (
	tweetExpansions = "attachments.media_keys,author_id"
	tweetFields     = "attachments,author_id,created_at,id,lang,public_metrics,text"
	mediaFields     = "duration_ms,media_key,preview_image_url,type,url,variants"
	userFields      = "created_at,description,id,location,name,profile_image_url,public_metrics,url,username,verified"
)

// TweetsV2Query is the query string for a v2 tweet lookup of ids
func TweetsV2Query(ids []string) map[string]string {
	return map[string]string{
		"ids":          strings.Join(ids, ","),
		"expansions":   tweetExpansions,
		"tweet.fields": tweetFields,
		"media.fields": mediaFields,
		"user.fields":  userFields,
	}
}

// UsersV2Query is the query string for a v2 user lookup of ids
func UsersV2Query(ids []string) map[string]string {
	return map[string]string{
		"ids":         strings.Join(ids, ","),
		"user.fields": userFields,
	}
}

// StatusV1Query is the query string for a v1.1 single status lookup
func StatusV1Query(id string) map[string]string {
	return map[string]string{
		"id":         id,
		"tweet_mode": "extended",
	}
}

// UserV1Query is the query string for a v1.1 single user lookup
func UserV1Query(id string) map[string]string {
	return map[string]string{"user_id": id}
}

// EmbedQuery is the query string the embed widget sends for a post
func EmbedQuery(id string) map[string]string {
	return map[string]string{
		"id":    id,
		"lang":  "en",
		"token": EmbedToken(id),
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// EmbedToken derives the token the embed widget sends: id/1e15*pi written
// in base 36 with every zero and the radix point removed
func EmbedToken(id string) string {
	n, err := strconv.ParseFloat(id, 64)
	if err != nil || n <= 0 {
		return ""
	}
	v := n / 1e15 * math.Pi
	whole := math.Floor(v)
	frac := v - whole

	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(whole), 36))
	for i := 0; i < 11 && frac > 0; i++ {
		frac *= 36
		d := int(frac)
		b.WriteByte(base36[d])
		frac -= float64(d)
	}
	return strings.ReplaceAll(b.String(), "0", "")
}
