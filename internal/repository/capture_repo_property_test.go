package repository

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/remote-agent-terminal/ptyscreen/internal/db"
	"github.com/remote-agent-terminal/ptyscreen/internal/model"
)

// A stored capture reads back with the same command, lines, status and timing.
func TestCaptureRoundTripProperty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history", "test.db")
	db.ResetDB()
	testDB, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	defer db.ResetDB()

	repo := NewCaptureRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	command := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 100
	})
	lines := gen.SliceOf(gen.OneGenOf(gen.AlphaString(), gen.Const(""), gen.Const("ünïcødé ✓")))

	properties.Property("captures survive a round trip through the history", prop.ForAll(
		func(command string, lines []string, failed bool, durationMs int64) bool {
			capture, err := model.NewCapture(command, time.Now())
			if err != nil {
				t.Logf("failed to build capture: %v", err)
				return false
			}
			capture.Lines = append([]string{}, lines...)
			capture.Bytes = len(lines)
			capture.Duration = time.Duration(durationMs) * time.Millisecond
			if failed {
				capture.Status = model.CaptureStatusFailed
				capture.Error = "exit status 1"
			}

			if err := repo.Create(ctx, capture); err != nil {
				t.Logf("failed to create capture: %v", err)
				return false
			}
			defer repo.Delete(ctx, capture.ID)

			got, err := repo.GetByID(ctx, capture.ID)
			if err != nil {
				t.Logf("failed to retrieve capture: %v", err)
				return false
			}

			return got.Command == capture.Command &&
				reflect.DeepEqual(got.Lines, capture.Lines) &&
				got.Status == capture.Status &&
				got.Error == capture.Error &&
				got.Bytes == capture.Bytes &&
				got.Duration == capture.Duration &&
				got.StartedAt.Equal(capture.StartedAt)
		},
		command,
		lines,
		gen.Bool(),
		gen.Int64Range(0, 1<<32),
	))

	properties.TestingRun(t)
}
