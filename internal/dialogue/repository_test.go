package dialogue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeRow feeds canned column values into scanSession.
type fakeRow struct {
	vals []any
	err  error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = f.vals[i].(uuid.UUID)
		case *string:
			*p = f.vals[i].(string)
		case *[]byte:
			*p = f.vals[i].([]byte)
		case *int:
			*p = f.vals[i].(int)
		case *time.Time:
			*p = f.vals[i].(time.Time)
		}
	}
	return nil
}

func roundTripSession(t *testing.T, s *Session) *Session {
	t.Helper()
	symptoms, pending, meta, err := marshalState(s)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	got, err := scanSession(fakeRow{vals: []any{
		s.ID, s.DeviceID, s.UserEmail, s.Topic,
		symptoms, pending, meta,
		s.Version, now, now,
	}})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestSessionStateRoundTrip(t *testing.T) {
	s := &Session{
		ID:               uuid.New(),
		DeviceID:         "device-1",
		UserEmail:        "mtu@example.com",
		Topic:            "Nina homa",
		Symptoms:         []string{"baridi", "homa"},
		PendingQuestions: []string{"kuhara"},
		Meta: SessionMeta{
			Candidates:        []string{"Malaria"},
			CandidateSymptoms: []string{"maumivu_ya_kichwa"},
			Asked:             []string{"kikohozi"},
		},
		Version: 3,
	}
	got := roundTripSession(t, s)
	if got.DeviceID != s.DeviceID || got.Topic != s.Topic || got.Version != s.Version {
		t.Errorf("scalar fields changed: %+v", got)
	}
	if len(got.Symptoms) != 2 || len(got.PendingQuestions) != 1 {
		t.Errorf("evidence changed: %+v", got)
	}
	if len(got.Meta.Candidates) != 1 || len(got.Meta.Asked) != 1 {
		t.Errorf("meta changed: %+v", got.Meta)
	}
}

// An initialized-but-empty candidate set must survive persistence as empty,
// not collapse back to nil: the controller reads nil as "not narrowed yet".
func TestCandidatesNilVersusEmpty(t *testing.T) {
	unset := roundTripSession(t, &Session{ID: uuid.New(), Meta: SessionMeta{Candidates: nil}})
	if unset.Meta.Candidates != nil {
		t.Errorf("nil candidates became %v", unset.Meta.Candidates)
	}

	contradictory := roundTripSession(t, &Session{ID: uuid.New(), Meta: SessionMeta{Candidates: []string{}}})
	if contradictory.Meta.Candidates == nil {
		t.Error("empty candidate set collapsed to nil across persistence")
	}
	if len(contradictory.Meta.Candidates) != 0 {
		t.Errorf("empty candidate set grew: %v", contradictory.Meta.Candidates)
	}
}

func TestScanSessionNoRows(t *testing.T) {
	_, err := scanSession(fakeRow{err: sql.ErrNoRows})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("sql.ErrNoRows mapped to %v, want ErrSessionNotFound", err)
	}
}

func TestRepositorySaveConflict(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	s := &Session{ID: uuid.New(), DeviceID: "d"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	first, _ := repo.GetByID(ctx, s.ID)
	second, _ := repo.GetByID(ctx, s.ID)
	if err := repo.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale save = %v, want ErrVersionConflict", err)
	}
}
