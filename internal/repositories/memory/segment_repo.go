package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/repositories"
)

type SegmentRepo struct {
	mu       sync.RWMutex
	segments map[string][]models.TranscriptSegment
}

func NewSegmentRepo() *SegmentRepo {
	return &SegmentRepo{segments: make(map[string][]models.TranscriptSegment)}
}

var _ repositories.SegmentRepository = (*SegmentRepo)(nil)

func (r *SegmentRepo) Insert(_ context.Context, seg *models.TranscriptSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	r.segments[seg.SessionID] = append(r.segments[seg.SessionID], *seg)
	return nil
}

func (r *SegmentRepo) ListBySession(_ context.Context, sessionID string) ([]models.TranscriptSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.TranscriptSegment, len(r.segments[sessionID]))
	copy(out, r.segments[sessionID])
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}
