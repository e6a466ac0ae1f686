package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"demoarchive/internal/config"
	"demoarchive/internal/consolidate"
	"demoarchive/internal/fileutil"
	"demoarchive/internal/logging"
	"demoarchive/internal/staging"
)

// FormatVersion is recorded in every archive's meta table.
const FormatVersion = "1"

const lockRetryDelay = 100 * time.Millisecond

// ShapeMismatchError reports masks of one (camera, prompt) that do not share
// a size, or a missing mask frame.
type ShapeMismatchError struct {
	Key   string
	Frame int
	Want  image.Point
	Got   image.Point
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s frame %d: mask is %dx%d, want %dx%d", e.Key, e.Frame, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// ErrorKind classifies the error for the run ledger.
func (e *ShapeMismatchError) ErrorKind() string { return "validation" }

// WriteResult summarises one committed archive write.
type WriteResult struct {
	Path          string
	Datasets      int
	Replaced      int64
	LegacyRemoved int64
	Bytes         int64
}

// Writer commits consolidated tables. Writes to one archive are serialised
// by an exclusive lock on <archive>.lock.
type Writer struct {
	stagingDir   string
	level        int
	removeLegacy bool
	logger       *slog.Logger
}

// NewWriter returns a writer configured from cfg.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		stagingDir:   cfg.Paths.StagingDir,
		level:        cfg.Archive.CompressionLevel,
		removeLegacy: cfg.Archive.RemoveLegacyKeys,
		logger:       logging.NewComponentLogger(logger, "archive"),
	}
}

// Write replaces the owned groups of the archive at path with table. Nothing
// is written when the table fails validation.
func (w *Writer) Write(ctx context.Context, path string, table *consolidate.Table) (WriteResult, error) {
	result := WriteResult{Path: path}
	if err := table.Validate(); err != nil {
		return result, err
	}
	datasets, err := Datasets(table)
	if err != nil {
		return result, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return result, fmt.Errorf("create archive directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return result, fmt.Errorf("lock archive %s: %w", path, err)
	}
	if !locked {
		return result, fmt.Errorf("lock archive %s: not acquired", path)
	}
	defer func() { _ = lock.Unlock() }()

	ws, err := staging.NewWorkspace(w.stagingDir, table.Demo)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			logging.WarnWithContext(w.logger, "staging workspace cleanup failed", "staging_cleanup_failed",
				logging.String("workspace", ws.Dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run demoarchive staging clean"),
				logging.String(logging.FieldImpact, "stale staged archive left on disk"),
			)
		}
	}()

	staged := ws.Path(filepath.Base(path))
	if fileutil.Exists(path) {
		if err := fileutil.CopyFileVerified(path, staged); err != nil {
			return result, fmt.Errorf("stage archive %s: %w", path, err)
		}
	}

	if err := w.apply(ctx, staged, table, datasets, &result); err != nil {
		return result, err
	}

	// Staging may live on another filesystem; land a verified sibling first.
	partial := path + ".partial"
	if err := fileutil.CopyFileVerified(staged, partial); err != nil {
		_ = os.Remove(partial)
		return result, fmt.Errorf("copy staged archive: %w", err)
	}
	if err := fileutil.ReplaceFile(partial, path); err != nil {
		_ = os.Remove(partial)
		return result, fmt.Errorf("replace archive %s: %w", path, err)
	}
	if info, err := os.Stat(path); err == nil {
		result.Bytes = info.Size()
	}

	w.logger.Info("archive written",
		logging.String(logging.FieldDemo, table.Demo),
		logging.String("path", path),
		logging.Int("datasets", result.Datasets),
		logging.Int64("replaced", result.Replaced),
		logging.Int64("legacy_removed", result.LegacyRemoved),
		logging.Int64("bytes", result.Bytes),
	)
	return result, nil
}

func (w *Writer) apply(ctx context.Context, staged string, table *consolidate.Table, datasets []Dataset, result *WriteResult) error {
	store, err := OpenStore(staged, w.level)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Update(ctx, func(tx *Tx) error {
		for _, group := range OwnedGroups {
			n, err := tx.Delete(ctx, group.String())
			if err != nil {
				return err
			}
			result.Replaced += n
		}
		if w.removeLegacy {
			for _, prefix := range LegacyPrefixes {
				n, err := tx.DeleteRootPrefix(ctx, prefix)
				if err != nil {
					return err
				}
				result.LegacyRemoved += n
			}
		}
		for _, d := range datasets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.Put(ctx, d); err != nil {
				return err
			}
		}
		return writeMeta(ctx, tx, table)
	})
	if err != nil {
		return err
	}
	result.Datasets = len(datasets)

	if err := store.Seal(ctx); err != nil {
		return err
	}
	return store.Close()
}

func writeMeta(ctx context.Context, tx *Tx, table *consolidate.Table) error {
	prompts, err := json.Marshal(table.Prompts())
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	cameras, err := json.Marshal(table.Cameras)
	if err != nil {
		return fmt.Errorf("encode cameras: %w", err)
	}
	entries := []struct{ key, value string }{
		{"format_version", FormatVersion},
		{"demo", table.Demo},
		{"mode", table.Mode},
		{"n_frames", strconv.Itoa(table.Frames)},
		{"prompts", string(prompts)},
		{"cameras", string(cameras)},
	}
	for _, e := range entries {
		if err := tx.SetMeta(ctx, e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Datasets stacks table into the archive's dense blocks in a stable order.
func Datasets(table *consolidate.Table) ([]Dataset, error) {
	n := table.Frames
	var out []Dataset
	for _, camera := range table.Cameras {
		if err := validateSegment("camera", camera); err != nil {
			return nil, err
		}
	}
	for _, s := range table.Objects {
		if err := validateSegment("prompt", s.Prompt); err != nil {
			return nil, err
		}

		robot, cam := make([]float64, 0, n*16), make([]float64, 0, n*16)
		for i := 0; i < n; i++ {
			robot = append(robot, s.RobotPoses[i][:]...)
			cam = append(cam, s.CamPoses[i][:]...)
		}
		out = append(out,
			Float64Dataset(PoseKey(SpaceRobot, s.Prompt), []int{n, 4, 4}, robot),
			Float64Dataset(PoseKey(SpaceCam, s.Prompt), []int{n, 4, 4}, cam),
		)

		robotBox, camBox := make([]float64, 0, n*8), make([]float64, 0, n*8)
		for i := 0; i < n; i++ {
			rb, cb := s.RobotBoxes[i].Flat(), s.CamBoxes[i].Flat()
			robotBox = append(robotBox, rb[:]...)
			camBox = append(camBox, cb[:]...)
		}
		out = append(out,
			Float64Dataset(Box3DKey(SpaceRobot, s.Prompt), []int{n, 2, 4}, robotBox),
			Float64Dataset(Box3DKey(SpaceCam, s.Prompt), []int{n, 2, 4}, camBox),
		)

		for c, camera := range table.Cameras {
			boxes := make([]float64, 0, n*4)
			for _, b := range s.Boxes2D[c] {
				boxes = append(boxes, b[:]...)
			}
			out = append(out, Float64Dataset(Box2DKey(camera, s.Prompt), []int{n, 4}, boxes))
		}

		if s.Masks == nil {
			continue
		}
		for c, camera := range table.Cameras {
			d, err := stackMasks(MaskKey(camera, s.Prompt), s.Masks[c])
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func stackMasks(key string, masks []*image.Gray) (Dataset, error) {
	if len(masks) == 0 {
		return Uint8Dataset(key, []int{0, 0, 0}, nil), nil
	}
	var size image.Point
	for i, m := range masks {
		var got image.Point
		if m != nil {
			got = m.Bounds().Size()
		}
		if i == 0 {
			size = got
		}
		if m == nil || got != size || got.X == 0 || got.Y == 0 {
			return Dataset{}, &ShapeMismatchError{Key: key, Frame: i, Want: size, Got: got}
		}
	}
	data := make([]byte, 0, len(masks)*size.X*size.Y)
	for _, m := range masks {
		for y := 0; y < size.Y; y++ {
			offset := y * m.Stride
			data = append(data, m.Pix[offset:offset+size.X]...)
		}
	}
	return Uint8Dataset(key, []int{len(masks), size.Y, size.X}, data), nil
}
