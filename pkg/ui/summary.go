package ui

import (
	"fmt"
	"os"
	"time"

	"xscraper/pkg/models"
)

// LookupSummary accumulates what a lookup produced for the closing report
type LookupSummary struct {
	kind       models.Kind
	records    int
	mediaFiles int
	bytes      int64
	startTime  time.Time
}

// NewLookupSummary starts timing a lookup of kind
func NewLookupSummary(kind models.Kind) *LookupSummary {
	return &LookupSummary{kind: kind, startTime: time.Now()}
}

// AddPost counts p and the size of its materialized media
func (s *LookupSummary) AddPost(p *models.Post) {
	s.records++
	for _, m := range p.Images {
		s.addFile(m.LocalPath)
	}
	for _, m := range p.Videos {
		s.addFile(m.LocalPath)
	}
	if p.VideoPreview != nil {
		s.addFile(p.VideoPreview.LocalPath)
	}
	if p.Author != nil && p.Author.ProfileImage != nil {
		s.addFile(p.Author.ProfileImage.LocalPath)
	}
}

// AddAuthor counts a and its avatar
func (s *LookupSummary) AddAuthor(a *models.Author) {
	s.records++
	if a.ProfileImage != nil {
		s.addFile(a.ProfileImage.LocalPath)
	}
}

func (s *LookupSummary) addFile(path string) {
	if path == "" {
		return
	}
	if info, err := os.Stat(path); err == nil {
		s.mediaFiles++
		s.bytes += info.Size()
	}
}

// Complete prints the summary
func (s *LookupSummary) Complete() {
	elapsed := time.Since(s.startTime)

	printf(false, "\n%s Retrieved %d %s(s)\n", Green("✓"), s.records, s.kind)
	printf(false, "  %s %d media files, %s in %s\n",
		Dim("•"),
		s.mediaFiles,
		FormatBytes(s.bytes),
		FormatDuration(elapsed),
	)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
