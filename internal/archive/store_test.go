package archive_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"demoarchive/internal/archive"
)

func TestDeleteRemovesOnlySubtree(t *testing.T) {
	ctx := context.Background()
	store, err := archive.OpenStore(filepath.Join(t.TempDir(), "a.archive"), 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for _, key := range []string{"masks/side_cam/cup", "masks/front_cam/cup", "masks_preview/cup", "masks"} {
		if err := store.Put(ctx, archive.Uint8Dataset(key, []int{2}, []byte{0, 255})); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	n, err := store.Delete(ctx, "masks")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var paths []string
	for _, info := range infos {
		paths = append(paths, info.Path)
	}
	if diff := cmp.Diff([]string{"masks_preview/cup"}, paths); diff != "" {
		t.Fatalf("remaining datasets mismatch (-want +got):\n%s", diff)
	}
}

func TestPutRejectsShapeMismatch(t *testing.T) {
	store, err := archive.OpenStore(filepath.Join(t.TempDir(), "a.archive"), 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	err = store.Put(context.Background(), archive.Float64Dataset("obj_poses/cam_frame/cup", []int{2, 4, 4}, make([]float64, 16)))
	if err == nil {
		t.Fatal("expected payload length error")
	}
}

func TestLegacyKeyDetection(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"robot_poses_cup", true},
		{"bbox_3D_robot_frame_red block", true},
		{"robot_poses_", false},
		{"obj_poses/robot_frame/cup", false},
		{"cam_K", false},
	}
	for _, tc := range cases {
		if got := archive.IsLegacyKey(tc.key); got != tc.want {
			t.Errorf("IsLegacyKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}
