package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	xerrors "xscraper/pkg/errors"
)

func TestRetrievalRequestValidate(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"20", false},
		{"1346889436626259968", false},
		{"", true},
		{"12a", true},
		{"-5", true},
		{" 12", true},
		{"١٢", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := RetrievalRequest{ID: tt.id, Kind: KindPost}.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, xerrors.ErrInvalidIdentifier))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostHasMedia(t *testing.T) {
	p := &Post{}
	assert.False(t, p.HasMedia())
	p.Videos = append(p.Videos, MaterializedMedia{Kind: MediaVideo})
	assert.True(t, p.HasMedia())
}
