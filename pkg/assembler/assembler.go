package assembler

import (
	"context"

	"xscraper/internal/downloader"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// Assembler turns raw payloads into domain records and materializes the
// media they reference
type Assembler struct {
	materializer downloader.Materializer
	workers      int
	logger       logger.Logger
}

// New creates an Assembler that downloads through m with up to workers
// concurrent transfers
func New(m downloader.Materializer, workers int, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Assembler{materializer: m, workers: workers, logger: log.WithField("component", "assembler")}
}

// Post builds a post from p. id names the requested post for error messages
// and for picking the right entry out of batched responses.
func (a *Assembler) Post(ctx context.Context, p *models.RawPayload, id string) (*models.Post, error) {
	d, err := normalizePost(p, id)
	if err != nil {
		return nil, err
	}

	var refs []models.MediaRef
	for _, u := range d.photos {
		refs = append(refs, models.MediaRef{SourceURL: u, Kind: models.MediaPhoto})
	}
	photoCount := len(refs)
	type videoRefs struct{ video, preview int }
	videos := make([]videoRefs, 0, len(d.videos))
	for _, v := range d.videos {
		vr := videoRefs{video: len(refs), preview: -1}
		refs = append(refs, models.MediaRef{SourceURL: v.url, Kind: v.kind})
		if v.preview != "" {
			vr.preview = len(refs)
			refs = append(refs, models.MediaRef{SourceURL: v.preview, Kind: models.MediaPhoto})
		}
		videos = append(videos, vr)
	}
	avatarIdx := -1
	if d.author != nil && d.author.avatar != "" {
		avatarIdx = len(refs)
		refs = append(refs, models.MediaRef{SourceURL: d.author.avatar, Kind: models.MediaPhoto})
	}

	results := a.materialize(ctx, refs)

	post := d.post
	post.Images = []models.MaterializedMedia{}
	post.Videos = []models.MaterializedMedia{}

	for i := 0; i < photoCount; i++ {
		if results[i].Error != nil {
			continue
		}
		post.Images = append(post.Images, media(refs[i], results[i].Path))
	}

	// a video and its preview survive or drop together
	for _, vr := range videos {
		if results[vr.video].Error != nil {
			continue
		}
		if vr.preview >= 0 && results[vr.preview].Error != nil {
			continue
		}
		post.Videos = append(post.Videos, media(refs[vr.video], results[vr.video].Path))
		if post.VideoFileType == "" {
			post.VideoFileType = refs[vr.video].Kind
			if vr.preview >= 0 {
				p := media(refs[vr.preview], results[vr.preview].Path)
				post.VideoPreview = &p
			}
		}
	}

	if d.author != nil {
		author := d.author.author
		if avatarIdx >= 0 && results[avatarIdx].Error == nil {
			img := media(refs[avatarIdx], results[avatarIdx].Path)
			author.ProfileImage = &img
		}
		post.Author = &author
	}

	a.logger.DebugWithFields("Post assembled", map[string]interface{}{
		"id":     post.ID,
		"source": string(post.Source),
		"images": len(post.Images),
		"videos": len(post.Videos),
	})
	return &post, nil
}

// Author builds an author record from p
func (a *Assembler) Author(ctx context.Context, p *models.RawPayload, id string) (*models.Author, error) {
	d, err := normalizeAuthor(p, id)
	if err != nil {
		return nil, err
	}

	author := d.author
	if d.avatar != "" {
		ref := models.MediaRef{SourceURL: d.avatar, Kind: models.MediaPhoto}
		if r := a.materialize(ctx, []models.MediaRef{ref})[0]; r.Error == nil {
			img := media(ref, r.Path)
			author.ProfileImage = &img
		}
	}

	a.logger.DebugWithFields("Author assembled", map[string]interface{}{
		"id":       author.ID,
		"username": author.Username,
		"source":   string(author.Source),
	})
	return &author, nil
}

// materialize downloads refs through the worker pool. Failures are logged
// and left on the result for the caller to drop.
func (a *Assembler) materialize(ctx context.Context, refs []models.MediaRef) []downloader.Result {
	if len(refs) == 0 {
		return nil
	}
	results := downloader.Run(ctx, a.workers, a.materializer, refs, a.logger)
	for _, r := range results {
		logger.LogMedia(a.logger, r.Job.Ref.SourceURL, r.Path, r.Error)
	}
	return results
}

func media(ref models.MediaRef, path string) models.MaterializedMedia {
	return models.MaterializedMedia{Kind: ref.Kind, SourceURL: ref.SourceURL, LocalPath: path}
}
