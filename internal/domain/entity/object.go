package entity

import "time"

const (
	AssetTypeMedia = "media"
	AssetTypeImage = "image"
)

// MediaObject describes a recording and the assets attached to it.
// StartDateTime and StopDateTime are epoch seconds.
type MediaObject struct {
	ID            string
	StartDateTime float64
	StopDateTime  float64
	MediaAssets   []Asset
	ImageAssets   []Asset
}

type Asset struct {
	ID              string
	ContainerID     string
	Name            string
	ContentType     string
	AssetType       string
	URI             string
	SignedURI       string
	Size            int64
	CreatedDateTime time.Time
}

// Location returns the URI to download the asset from.
func (a Asset) Location() string {
	if a.SignedURI != "" {
		return a.SignedURI
	}
	return a.URI
}

// Artifact is a derived document to attach to a media object.
type Artifact struct {
	ContainerID string
	ContentType string
	AssetType   string
	Name        string
	Source      string
	Data        []byte
}

type AssetRef struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}
