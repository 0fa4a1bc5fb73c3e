package healer

import (
	"time"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

// Stage names, in pipeline order. Every attempt's timeline contains each
// name exactly once; stages the attempt never reached are recorded skipped.
const (
	stageCollect  = "collect"
	stageClassify = "classify"
	stageReason   = "reason"
	stagePatch    = "patch"
	stageVerify   = "verify"
	stageRecord   = "record"
)

var stageOrder = []string{
	stageCollect, stageClassify, stageReason, stagePatch, stageVerify, stageRecord,
}

// timeline accumulates stage entries for one healing attempt.
type timeline struct {
	testFile string
	attempt  int
	stages   []schemas.TimelineStage
}

func newTimeline(testFile string, attempt int) *timeline {
	return &timeline{testFile: testFile, attempt: attempt}
}

// start opens a stage and returns its recorder. Exactly one of OK, Error or
// Skip must be called on the recorder before the next start.
func (t *timeline) start(name string) *stageRecorder {
	return &stageRecorder{
		t:     t,
		name:  name,
		begin: time.Now().UTC(),
	}
}

func (t *timeline) finish(name string, status schemas.StageStatus, detail string, begin time.Time) {
	t.stages = append(t.stages, schemas.TimelineStage{
		Name:      name,
		Status:    status,
		Detail:    detail,
		StartedAt: begin,
		EndedAt:   time.Now().UTC(),
	})
}

// skipRemaining marks every stage the attempt never reached as skipped, so
// the persisted timeline always carries the full stage sequence.
func (t *timeline) skipRemaining(detail string) {
	seen := make(map[string]bool, len(t.stages))
	for _, s := range t.stages {
		seen[s.Name] = true
	}
	now := time.Now().UTC()
	for _, name := range stageOrder {
		if name == stageRecord || seen[name] {
			continue
		}
		t.stages = append(t.stages, schemas.TimelineStage{
			Name:      name,
			Status:    schemas.StageSkipped,
			Detail:    detail,
			StartedAt: now,
			EndedAt:   now,
		})
	}
}

func (t *timeline) build() schemas.ExecutionTimeline {
	return schemas.ExecutionTimeline{
		TestFile: t.testFile,
		Attempt:  t.attempt,
		Stages:   t.stages,
	}
}

// stageRecorder closes one open stage.
type stageRecorder struct {
	t     *timeline
	name  string
	begin time.Time
}

func (s *stageRecorder) OK(detail string) {
	s.t.finish(s.name, schemas.StageOK, detail, s.begin)
}

func (s *stageRecorder) Error(detail string) {
	s.t.finish(s.name, schemas.StageError, detail, s.begin)
}

func (s *stageRecorder) Skip(detail string) {
	s.t.finish(s.name, schemas.StageSkipped, detail, s.begin)
}
