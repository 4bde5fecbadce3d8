package rekognition

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"go.uber.org/zap"
)

// DetectFacesAPI is the part of the Rekognition client the detector uses.
type DetectFacesAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

type DetectorConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// MinConfidence drops faces below this confidence (0..100). Zero keeps all.
	MinConfidence float64
}

type FaceDetector struct {
	client        DetectFacesAPI
	minConfidence float64
	logger        *zap.Logger
}

func NewFaceDetector(ctx context.Context, cfg DetectorConfig, logger *zap.Logger) (*FaceDetector, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewFaceDetectorWithClient(rekognition.NewFromConfig(awsCfg), cfg.MinConfidence, logger), nil
}

func NewFaceDetectorWithClient(client DetectFacesAPI, minConfidence float64, logger *zap.Logger) *FaceDetector {
	return &FaceDetector{client: client, minConfidence: minConfidence, logger: logger}
}

// WithMinConfidence returns a detector sharing the client with another threshold.
func (d *FaceDetector) WithMinConfidence(minConfidence float64) *FaceDetector {
	return &FaceDetector{client: d.client, minConfidence: minConfidence, logger: d.logger}
}

// Detect runs DetectFaces with all facial attributes on one image.
func (d *FaceDetector) Detect(ctx context.Context, image []byte) ([]entity.Region, error) {
	out, err := d.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	regions := make([]entity.Region, 0, len(out.FaceDetails))
	for _, face := range out.FaceDetails {
		if d.minConfidence > 0 && float64(aws.ToFloat32(face.Confidence)) < d.minConfidence {
			continue
		}
		region, err := toRegion(face)
		if err != nil {
			d.logger.Warn("dropping face detail", zap.Error(err))
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// toRegion splits the bounding box off a face detail; everything else
// becomes the region's attributes.
func toRegion(face types.FaceDetail) (entity.Region, error) {
	var box entity.Box
	if bb := face.BoundingBox; bb != nil {
		box = entity.Box{
			Left:   float64(aws.ToFloat32(bb.Left)),
			Top:    float64(aws.ToFloat32(bb.Top)),
			Width:  float64(aws.ToFloat32(bb.Width)),
			Height: float64(aws.ToFloat32(bb.Height)),
		}
	}
	face.BoundingBox = nil

	raw, err := json.Marshal(face)
	if err != nil {
		return entity.Region{}, fmt.Errorf("encode face detail: %w", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return entity.Region{}, fmt.Errorf("decode face detail: %w", err)
	}
	for k, v := range attrs {
		if v == nil {
			delete(attrs, k)
		}
	}

	return entity.Region{Box: box, Attributes: attrs}, nil
}
