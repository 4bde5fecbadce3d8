package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fiapx/fiapx-detection-service/internal/decompose"
	"github.com/fiapx/fiapx-detection-service/internal/detection"
	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"github.com/fiapx/fiapx-detection-service/internal/infra/archive"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]entity.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]entity.Task{}}
}

func (r *fakeTaskRepo) Create(_ context.Context, t *entity.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.JobID+"/"+t.TaskID] = *t
	return nil
}

func (r *fakeTaskRepo) Update(_ context.Context, t *entity.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := t.JobID + "/" + t.TaskID
	if _, ok := r.tasks[key]; !ok {
		return errors.New("task not found")
	}
	r.tasks[key] = *t
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, jobID, taskID string) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[jobID+"/"+taskID]
	if !ok {
		return nil, errors.New("task not found")
	}
	return &t, nil
}

type fakeObjects struct {
	objects map[string]*entity.MediaObject
	err     error
}

func (f *fakeObjects) FetchObject(_ context.Context, id string) (*entity.MediaObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	obj, ok := f.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: media object %s does not exist", entity.ErrAssetNotFound, id)
	}
	return obj, nil
}

type fakeArtifacts struct {
	uploaded []entity.Artifact
	err      error
}

func (f *fakeArtifacts) UploadArtifact(_ context.Context, a entity.Artifact) (*entity.AssetRef, error) {
	if f.err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUpload, f.err)
	}
	f.uploaded = append(f.uploaded, a)
	id := fmt.Sprintf("asset-%d", len(f.uploaded))
	return &entity.AssetRef{ID: id, URI: "s3://artifacts/" + a.ContainerID + "/" + id + "/" + a.Name}, nil
}

func (f *fakeArtifacts) byType(assetType string) []entity.Artifact {
	var out []entity.Artifact
	for _, a := range f.uploaded {
		if a.AssetType == assetType {
			out = append(out, a)
		}
	}
	return out
}

// fakeReporter saves through the repo and then publishes, like the real
// reporter. reports holds every published transition. failStatus makes the
// publish step fail failTimes times for that status, after the save.
type fakeReporter struct {
	repo       port.TaskRepository
	reports    []entity.Task
	err        error
	failStatus entity.TaskStatus
	failTimes  int
}

func (f *fakeReporter) ReportTaskStatus(ctx context.Context, t *entity.Task) error {
	if f.err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStatusReport, f.err)
	}
	if err := f.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStatusReport, err)
	}
	if f.failTimes > 0 && t.Status == f.failStatus {
		f.failTimes--
		return fmt.Errorf("%w: publish status: broker closed", entity.ErrStatusReport)
	}
	f.reports = append(f.reports, *t)
	return nil
}

func (f *fakeReporter) statuses() []entity.TaskStatus {
	out := make([]entity.TaskStatus, len(f.reports))
	for i, r := range f.reports {
		out[i] = r.Status
	}
	return out
}

type fakeDLQ struct {
	msgs    [][]byte
	reasons []string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	f.msgs = append(f.msgs, msg)
	f.reasons = append(f.reasons, reason)
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) NotifyFailure(_ context.Context, email, _, taskID, _, errorMsg string) error {
	f.sent = append(f.sent, email+"|"+taskID+"|"+errorMsg)
	return nil
}

type fakeTimeline struct {
	events map[string]entity.TaskOutput
}

func (f *fakeTimeline) EmitTimeline(_ context.Context, recordingID string, output entity.TaskOutput) error {
	if f.events == nil {
		f.events = map[string]entity.TaskOutput{}
	}
	f.events[recordingID] = output
	return nil
}

// fakeDownloader writes a 640x480 PNG for .png URIs and the URI itself for
// anything else.
type fakeDownloader struct{}

func (fakeDownloader) DownloadAsset(_ context.Context, uri string, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	data := []byte(uri)
	if filepath.Ext(uri) == ".png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 640, 480))); err != nil {
			return "", err
		}
		data = buf.Bytes()
	}
	path := filepath.Join(destDir, filepath.Base(uri))
	return path, os.WriteFile(path, data, 0o644)
}

// fakeExtractor writes n PNG frames, frame_i.png being 100+i pixels wide.
type fakeExtractor struct {
	n    int
	err  error
	rate float64
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, rate float64, opts port.ExtractOptions) ([]string, error) {
	f.rate = rate
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for i := 1; i <= f.n; i++ {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 100+i, 60))); err != nil {
			return nil, err
		}
		p := filepath.Join(opts.OutputDir, fmt.Sprintf("frame_%d.png", i))
		if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// fakeDetector finds two faces per frame and fails on images whose width
// is listed in failWidths.
type fakeDetector struct {
	minConfidence float64
	failWidths    map[int]bool
}

func (d *fakeDetector) Detect(_ context.Context, data []byte) ([]entity.Region, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if d.failWidths[cfg.Width] {
		return nil, errors.New("ProvisionedThroughputExceededException")
	}
	return []entity.Region{
		{Box: entity.Box{Left: 0.1, Top: 0.1, Width: 0.2, Height: 0.2}, Attributes: map[string]any{"Confidence": 99.0}},
		{Box: entity.Box{Left: 0.6, Top: 0.1, Width: 0.2, Height: 0.2}, Attributes: map[string]any{"Confidence": 91.0}},
	}, nil
}

type harness struct {
	uc         *DetectFacesUseCase
	tasks      *fakeTaskRepo
	objects    *fakeObjects
	artifacts  *fakeArtifacts
	reporter   *fakeReporter
	extractor  *fakeExtractor
	dlq        *fakeDLQ
	notifier   *fakeNotifier
	timeline   *fakeTimeline
	detectors  []*fakeDetector
	failWidths map[int]bool
	tempDir    string
}

func newHarness(t *testing.T, frames int) *harness {
	t.Helper()
	h := &harness{
		tasks:      newFakeTaskRepo(),
		objects:    &fakeObjects{objects: map[string]*entity.MediaObject{}},
		artifacts:  &fakeArtifacts{},
		extractor:  &fakeExtractor{n: frames},
		dlq:        &fakeDLQ{},
		notifier:   &fakeNotifier{},
		timeline:   &fakeTimeline{},
		failWidths: map[int]bool{},
		tempDir:    t.TempDir(),
	}
	h.reporter = &fakeReporter{repo: h.tasks}

	log := zap.NewNop()
	h.uc = NewDetectFacesUseCase(DetectFacesDeps{
		Tasks:      h.tasks,
		Objects:    h.objects,
		Artifacts:  h.artifacts,
		Reporter:   h.reporter,
		Decomposer: decompose.NewDecomposer(fakeDownloader{}, h.extractor, log),
		Pipeline:   detection.NewPipeline(detection.FileLoader{}, 0, log),
		Detector: func(minConfidence float64) port.FaceDetector {
			d := &fakeDetector{minConfidence: minConfidence, failWidths: h.failWidths}
			h.detectors = append(h.detectors, d)
			return d
		},
		Zipper:   archive.NewZipCreator(),
		DLQ:      h.dlq,
		Notifier: h.notifier,
		Timeline: h.timeline,
	}, log, DetectFacesConfig{
		TempDir:           h.tempDir,
		MaxRetries:        3,
		FramesPerSecond:   1,
		MaxParallelImages: 2,
		MinConfidence:     0,
		JPEGQuality:       1,
	})
	return h
}

func (h *harness) addVideo(id string) {
	h.objects.objects[id] = &entity.MediaObject{
		ID:          id,
		MediaAssets: []entity.Asset{{ID: id + "-media", AssetType: entity.AssetTypeMedia, URI: "s3://recordings/" + id + "/clip.mp4"}},
	}
}

func (h *harness) task(t *testing.T, jobID, taskID string) entity.Task {
	t.Helper()
	task, err := h.tasks.FindByID(context.Background(), jobID, taskID)
	require.NoError(t, err)
	return *task
}
