package videostore

import "path/filepath"

// segmentPaths resolves the MP4 and .mvi paths for a segment ID rooted at
// dir/segments/<id>.{mp4,mvi}.
type segmentPaths struct {
	dir string
}

func newSegmentPaths(dir string) segmentPaths { return segmentPaths{dir: dir} }

func (s segmentPaths) MP4(segmentID string) string {
	return filepath.Join(s.dir, "segments", segmentID+".mp4")
}

func (s segmentPaths) Index(segmentID string) string {
	return filepath.Join(s.dir, "segments", segmentID+".mvi")
}

func (s segmentPaths) SegmentsDir() string {
	return filepath.Join(s.dir, "segments")
}
