package recorder

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/pubsub"
	"github.com/cyfitech/corebus/internal/sched"
)

type recTestMsg struct{ V int }

func serializeRecTestMsg(m recTestMsg) ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(m.V))
	return b, nil
}

func deserializeRecTestMsg(b []byte) (recTestMsg, error) {
	return recTestMsg{V: int(binary.LittleEndian.Uint64(b))}, nil
}

func (r *Recorder) waitForStrandDrain() {
	done := make(chan struct{})
	r.recordStrand.AddJob(func() { close(done) })
	<-done
}

func TestRecorderWritesDispatchedMessages(t *testing.T) {
	dir := t.TempDir()
	runner := sched.NewJobRunner(sched.Config{ThreadNum: 2, AlwaysActiveThreadNum: 2, ActiveTime: time.Second})
	defer runner.Shutdown()

	rec, err := NewRecorder(runner, dir, Config{}, clock.Default)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	defer rec.Close()

	if err := RegisterChannel[recTestMsg](rec, 5, serializeRecTestMsg); err != nil {
		t.Fatalf("register channel: %v", err)
	}

	ch := pubsub.Channel{Tag: pubsub.TagOf[recTestMsg](), SubID: 5}
	for i := 0; i < 5; i++ {
		pubsub.Dispatch(ch, recTestMsg{V: i})
	}
	rec.waitForStrandDrain()

	entries, err := rec.files[ch].Iterate()
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i, e := range entries {
		v, err := deserializeRecTestMsg(e.Value)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if v.V != i {
			t.Fatalf("entry %d: expected value %d, got %d", i, i, v.V)
		}
	}
}

func TestRecorderSegmentDirNaming(t *testing.T) {
	dir := t.TempDir()
	runner := sched.NewJobRunner(sched.Config{ThreadNum: 1, AlwaysActiveThreadNum: 1, ActiveTime: time.Second})
	defer runner.Shutdown()

	rec, err := NewRecorder(runner, dir, Config{}, clock.Default)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	defer rec.Close()

	if err := RegisterChannel[recTestMsg](rec, 9, serializeRecTestMsg); err != nil {
		t.Fatalf("register channel: %v", err)
	}

	ch := pubsub.Channel{Tag: pubsub.TagOf[recTestMsg](), SubID: 9}
	want := filepath.Join(rec.recordDir, sanitizeTypeName(ch.Tag.String())+"_subid_9.ldb")
	if rec.files[ch].GetFilePath() != want {
		t.Fatalf("expected segment path %s, got %s", want, rec.files[ch].GetFilePath())
	}
}

func TestRecorderSnapshotEnforcesMaxCopies(t *testing.T) {
	dir := t.TempDir()
	runner := sched.NewJobRunner(sched.Config{ThreadNum: 1, AlwaysActiveThreadNum: 1, ActiveTime: time.Second})
	defer runner.Shutdown()

	rec, err := NewRecorder(runner, dir, Config{
		SnapshotIntervals: []SnapshotIntervalConfig{{Name: "test", PeriodSec: 3600, MaxNumOfCopies: 2}},
	}, clock.Default)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	defer rec.Close()

	if err := RegisterChannel[recTestMsg](rec, 1, serializeRecTestMsg); err != nil {
		t.Fatalf("register channel: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := rec.takeSnapshot(); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	paths := rec.GetSnapshotPaths()
	if len(paths) > 2 {
		t.Fatalf("expected at most 2 retained snapshots, got %d", len(paths))
	}
}
