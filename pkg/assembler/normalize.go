package assembler

import (
	"fmt"
	"strings"

	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/models"
)

// postDraft is a post whose media and author avatar are still remote
type postDraft struct {
	post   models.Post
	photos []string
	videos []videoDraft
	author *authorDraft
}

type videoDraft struct {
	kind    models.MediaKind
	url     string
	preview string
}

type authorDraft struct {
	author models.Author
	avatar string
}

// Availability reports errors.ErrUnavailable when a GraphQL payload was
// captured but the resource is withheld from the current session. Other
// sources always report nil.
func Availability(p *models.RawPayload) error {
	if p == nil || p.Source != models.SourceGraphQL {
		return nil
	}
	switch p.Kind {
	case models.KindAuthor:
		var env userEnvelope
		if err := decode(p.Data, &env); err != nil {
			return err
		}
		r := env.Data.User.Result
		if r == nil || r.Typename == "UserUnavailable" {
			return fmt.Errorf("%w: author", xerrors.ErrUnavailable)
		}
	default:
		var env tweetEnvelope
		if err := decode(p.Data, &env); err != nil {
			return err
		}
		r := env.Data.TweetResult.Result.unwrap()
		if r == nil || r.Typename == "TweetUnavailable" || r.Typename == "TweetTombstone" || r.Legacy == nil {
			return fmt.Errorf("%w: post", xerrors.ErrUnavailable)
		}
	}
	return nil
}

func normalizePost(p *models.RawPayload, id string) (*postDraft, error) {
	var (
		d   *postDraft
		err error
	)
	switch p.Source {
	case models.SourceGraphQL:
		d, err = postFromGraphQL(p.Data, id)
	case models.SourceRESTv1:
		var t legacyTweet
		if err = decode(p.Data, &t); err == nil {
			d = postFromLegacy(&t, "")
			if t.User != nil {
				d.author = authorFromLegacy(t.User, "")
			}
		}
	case models.SourceRESTv2:
		d, err = postFromV2(p.Data, id)
	case models.SourceEmbed:
		d, err = postFromEmbed(p.Data, id)
	default:
		err = &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("unknown payload source %q", p.Source)}
	}
	if err != nil {
		return nil, err
	}
	if d.post.ID == "" {
		d.post.ID = id
	}
	d.post.Source = p.Source
	d.post.ScreenshotFile = p.Screenshot
	if d.author != nil {
		d.author.author.Source = p.Source
	}
	return d, nil
}

func postFromGraphQL(data any, id string) (*postDraft, error) {
	var env tweetEnvelope
	if err := decode(data, &env); err != nil {
		return nil, err
	}
	r := env.Data.TweetResult.Result.unwrap()
	if r == nil || r.Legacy == nil {
		return nil, xerrors.NotFound(string(models.KindPost), id)
	}

	d := postFromLegacy(r.Legacy, r.RestID)
	if u := r.Core.UserResults.Result; u != nil {
		d.author = authorFromGraphQL(u)
	}
	return d, nil
}

func postFromLegacy(t *legacyTweet, restID string) *postDraft {
	d := &postDraft{post: models.Post{
		ID:           firstNonEmpty(t.IDStr, restID),
		Text:         t.text(),
		CreatedAt:    parseTime(t.CreatedAt),
		Language:     t.Lang,
		LikeCount:    int(t.FavoriteCount),
		RetweetCount: int(t.RetweetCount),
		ReplyCount:   int(t.ReplyCount),
		QuoteCount:   int(t.QuoteCount),
	}}
	d.addLegacyMedia(t.media())
	return d
}

func (d *postDraft) addLegacyMedia(media []legacyMedia) {
	for _, m := range media {
		switch models.MediaKind(m.Type) {
		case models.MediaPhoto:
			if m.MediaURLHTTPS != "" {
				d.photos = append(d.photos, m.MediaURLHTTPS)
			}
		case models.MediaVideo, models.MediaAnimatedImage:
			var variants []variant
			if m.VideoInfo != nil {
				variants = m.VideoInfo.Variants
			}
			d.addVideo(models.MediaKind(m.Type), variants, m.MediaURLHTTPS)
		}
	}
}

// addVideo keeps the highest-bitrate variant. A video with no variant
// carrying a bitrate is dropped.
func (d *postDraft) addVideo(kind models.MediaKind, variants []variant, preview string) {
	best, ok := bestVariant(variants)
	if !ok {
		return
	}
	d.videos = append(d.videos, videoDraft{kind: kind, url: best.URL, preview: preview})
}

func bestVariant(variants []variant) (variant, bool) {
	var (
		best     variant
		bestRate = -1
	)
	for _, v := range variants {
		rate, ok := v.rate()
		if !ok || v.URL == "" {
			continue
		}
		if rate > bestRate {
			best, bestRate = v, rate
		}
	}
	return best, bestRate >= 0
}

func postFromV2(data any, id string) (*postDraft, error) {
	var resp v2TweetResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, xerrors.NotFound(string(models.KindPost), id)
	}

	t := resp.Data[0]
	for _, candidate := range resp.Data {
		if candidate.ID == id {
			t = candidate
			break
		}
	}

	d := &postDraft{post: models.Post{
		ID:           t.ID,
		Text:         t.Text,
		CreatedAt:    parseTime(t.CreatedAt),
		Language:     t.Lang,
		LikeCount:    int(t.PublicMetrics.LikeCount),
		RetweetCount: int(t.PublicMetrics.RetweetCount),
		ReplyCount:   int(t.PublicMetrics.ReplyCount),
		QuoteCount:   int(t.PublicMetrics.QuoteCount),
	}}

	media := make(map[string]v2Media, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		media[m.MediaKey] = m
	}
	for _, key := range t.Attachments.MediaKeys {
		m, ok := media[key]
		if !ok {
			continue
		}
		switch models.MediaKind(m.Type) {
		case models.MediaPhoto:
			if m.URL != "" {
				d.photos = append(d.photos, m.URL)
			}
		case models.MediaVideo, models.MediaAnimatedImage:
			d.addVideo(models.MediaKind(m.Type), m.Variants, m.PreviewImageURL)
		}
	}

	for i := range resp.Includes.Users {
		if resp.Includes.Users[i].ID == t.AuthorID {
			d.author = authorFromV2(&resp.Includes.Users[i])
			break
		}
	}
	return d, nil
}

func postFromEmbed(data any, id string) (*postDraft, error) {
	var t embedTweet
	if err := decode(data, &t); err != nil {
		return nil, err
	}
	if t.IDStr == "" && t.Text == "" {
		return nil, xerrors.NotFound(string(models.KindPost), id)
	}

	d := &postDraft{post: models.Post{
		ID:         t.IDStr,
		Text:       t.Text,
		CreatedAt:  parseTime(t.CreatedAt),
		Language:   t.Lang,
		LikeCount:  int(t.FavoriteCount),
		ReplyCount: int(t.ConversationCount),
	}}
	d.addLegacyMedia(t.MediaDetails)
	if t.User != nil {
		d.author = authorFromLegacy(t.User, "")
	}
	return d, nil
}

func normalizeAuthor(p *models.RawPayload, id string) (*authorDraft, error) {
	var (
		a   *authorDraft
		err error
	)
	switch p.Source {
	case models.SourceGraphQL:
		var env userEnvelope
		if err = decode(p.Data, &env); err == nil {
			r := env.Data.User.Result
			if r == nil || r.Typename == "UserUnavailable" {
				err = xerrors.NotFound(string(models.KindAuthor), id)
			} else {
				a = authorFromGraphQL(r)
			}
		}
	case models.SourceRESTv1:
		var u legacyUser
		if err = decode(p.Data, &u); err == nil {
			a = authorFromLegacy(&u, "")
		}
	case models.SourceRESTv2:
		var resp v2UserResponse
		if err = decode(p.Data, &resp); err == nil {
			if len(resp.Data) == 0 {
				err = xerrors.NotFound(string(models.KindAuthor), id)
			} else {
				u := resp.Data[0]
				for _, candidate := range resp.Data {
					if candidate.ID == id {
						u = candidate
						break
					}
				}
				a = authorFromV2(&u)
			}
		}
	default:
		err = &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("source %q cannot describe an author", p.Source)}
	}
	if err != nil {
		return nil, err
	}
	if a.author.ID == "" {
		a.author.ID = id
	}
	a.author.Source = p.Source
	return a, nil
}

func authorFromGraphQL(r *userResult) *authorDraft {
	var a *authorDraft
	if r.Legacy != nil {
		a = authorFromLegacy(r.Legacy, r.RestID)
	} else {
		a = &authorDraft{author: models.Author{ID: r.RestID}}
	}
	if r.Core != nil {
		a.author.Name = firstNonEmpty(a.author.Name, r.Core.Name)
		a.author.Username = firstNonEmpty(a.author.Username, r.Core.ScreenName)
		if a.author.CreatedAt.IsZero() {
			a.author.CreatedAt = parseTime(r.Core.CreatedAt)
		}
	}
	if a.avatar == "" && r.Avatar != nil {
		a.avatar = fullSizeAvatar(r.Avatar.ImageURL)
		a.author.ProfileImageURL = a.avatar
	}
	a.author.Verified = a.author.Verified || r.IsBlueVerified
	a.author.URL = profileURL(a.author.URL, a.author.Username)
	return a
}

func authorFromLegacy(u *legacyUser, restID string) *authorDraft {
	url := ""
	if urls := u.Entities.URL.URLs; len(urls) > 0 && urls[0].ExpandedURL != "" {
		url = urls[0].ExpandedURL
	} else if u.URL != nil {
		url = *u.URL
	}

	avatar := fullSizeAvatar(u.ProfileImageURLHTTPS)
	return &authorDraft{
		author: models.Author{
			ID:              firstNonEmpty(restID, u.IDStr),
			Name:            u.Name,
			Username:        u.ScreenName,
			CreatedAt:       parseTime(u.CreatedAt),
			Location:        u.Location,
			Description:     u.Description,
			URL:             profileURL(url, u.ScreenName),
			ProfileImageURL: avatar,
			FollowersCount:  int(u.FollowersCount),
			FollowingCount:  int(u.FriendsCount),
			TweetCount:      int(u.StatusesCount),
			ListedCount:     int(u.ListedCount),
			Verified:        u.Verified,
		},
		avatar: avatar,
	}
}

func authorFromV2(u *v2User) *authorDraft {
	avatar := fullSizeAvatar(u.ProfileImageURL)
	return &authorDraft{
		author: models.Author{
			ID:              u.ID,
			Name:            u.Name,
			Username:        u.Username,
			CreatedAt:       parseTime(u.CreatedAt),
			Location:        u.Location,
			Description:     u.Description,
			URL:             profileURL(u.URL, u.Username),
			ProfileImageURL: avatar,
			FollowersCount:  int(u.PublicMetrics.FollowersCount),
			FollowingCount:  int(u.PublicMetrics.FollowingCount),
			TweetCount:      int(u.PublicMetrics.TweetCount),
			ListedCount:     int(u.PublicMetrics.ListedCount),
			Verified:        u.Verified,
		},
		avatar: avatar,
	}
}

// fullSizeAvatar drops the "_normal" thumbnail marker from an avatar URL
func fullSizeAvatar(url string) string {
	return strings.Replace(url, "_normal", "", 1)
}

func profileURL(url, username string) string {
	if url != "" || username == "" {
		return url
	}
	return "https://x.com/" + username
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
