package entity

// Box is a normalized [0,1] rectangle inside an image.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is one entity located by a detector.
type Region struct {
	Box        Box
	Attributes map[string]any
}

// BoundingPoly is a Box plus the pixel size of the frame it was found in.
type BoundingPoly struct {
	Left        float64 `json:"left"`
	Top         float64 `json:"top"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	ImageWidth  int     `json:"imageWidth"`
	ImageHeight int     `json:"imageHeight"`
}

// DetectionRecord is one located entity on the media timeline.
type DetectionRecord struct {
	StartTimeMs  float64        `json:"startTimeMs"`
	StopTimeMs   float64        `json:"stopTimeMs"`
	BoundingPoly BoundingPoly   `json:"boundingPoly"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// PipelineResult aggregates every frame contribution of one batch.
type PipelineResult struct {
	Records []DetectionRecord
	Frames  int
	Failed  int
}

// TaskOutput is the document uploaded as artifact and reported as task output.
type TaskOutput struct {
	Series  []DetectionRecord `json:"series"`
	AssetID string            `json:"assetId,omitempty"`
}
