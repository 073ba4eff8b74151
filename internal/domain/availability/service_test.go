package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockSlotRepo struct {
	slots map[uuid.UUID]*Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockSlotRepo) InsertBatch(_ context.Context, slots []*Slot) error {
	for _, s := range slots {
		cp := *s
		m.slots[s.ID] = &cp
	}
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSlotRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Slot, error) {
	for _, s := range m.slots {
		if s.AppointmentID != nil && *s.AppointmentID == appointmentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockSlotRepo) StartTimes(_ context.Context, caregiverID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var starts []time.Time
	for _, s := range m.slots {
		if s.CaregiverID == caregiverID && !s.StartTime.Before(from) && s.StartTime.Before(to) {
			starts = append(starts, s.StartTime)
		}
	}
	return starts, nil
}

func (m *mockSlotRepo) ListByCaregiver(_ context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var items []*Slot
	for _, s := range m.slots {
		if s.CaregiverID == caregiverID {
			items = append(items, s)
		}
	}
	return items, len(items), nil
}

func (m *mockSlotRepo) ListOpen(_ context.Context, limit, offset int) ([]*Slot, int, error) {
	var items []*Slot
	for _, s := range m.slots {
		if !s.Booked {
			items = append(items, s)
		}
	}
	return items, len(items), nil
}

func (m *mockSlotRepo) ListOpenTimes(_ context.Context) ([]*OpenTime, error) {
	byStart := make(map[int64]*OpenTime)
	for _, s := range m.slots {
		if s.Booked {
			continue
		}
		key := s.StartTime.Unix()
		ot, ok := byStart[key]
		if !ok {
			ot = &OpenTime{StartTime: s.StartTime, EndTime: s.EndTime}
			byStart[key] = ot
		}
		ot.CaregiverIDs = append(ot.CaregiverIDs, s.CaregiverID)
	}
	var items []*OpenTime
	for _, ot := range byStart {
		items = append(items, ot)
	}
	return items, nil
}

func (m *mockSlotRepo) FindFree(_ context.Context, caregiverID uuid.UUID, at time.Time) (*Slot, error) {
	for _, s := range m.slots {
		if s.CaregiverID == caregiverID && !s.Booked && !s.StartTime.After(at) && s.EndTime.After(at) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockSlotRepo) Claim(_ context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	s, ok := m.slots[slotID]
	if !ok || s.Booked {
		return false, nil
	}
	s.Booked = true
	aid := appointmentID
	s.AppointmentID = &aid
	return true, nil
}

func (m *mockSlotRepo) Release(_ context.Context, slotID uuid.UUID) error {
	s, ok := m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	s.Booked = false
	s.AppointmentID = nil
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.slots, id)
	return nil
}

func (m *mockSlotRepo) DeleteExpiredUnbooked(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, s := range m.slots {
		if !s.Booked && s.EndTime.Before(cutoff) {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}

type mockAppointmentStore struct {
	deleted []uuid.UUID
	err     error
}

func (m *mockAppointmentStore) Delete(_ context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockSlotRepo, *mockAppointmentStore) {
	slots := newMockSlotRepo()
	appts := &mockAppointmentStore{}
	return NewService(slots, appts, passthroughTx), slots, appts
}

func TestGenerateSlots_InvalidCaregiver(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.GenerateSlots(context.Background(), uuid.Nil, time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrInvalidCaregiver) {
		t.Errorf("expected ErrInvalidCaregiver, got %v", err)
	}
}

func TestGenerateSlots_InvalidRange(t *testing.T) {
	svc, _, _ := newTestService()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.GenerateSlots(context.Background(), uuid.New(), start, start)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for start==end, got %v", err)
	}

	_, err = svc.GenerateSlots(context.Background(), uuid.New(), start, start.Add(-time.Hour))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for start>end, got %v", err)
	}
}

func TestGenerateSlots_FixedDurationSteps(t *testing.T) {
	svc, repo, _ := newTestService()
	cg := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	slots, err := svc.GenerateSlots(context.Background(), cg, start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots for a 2h window, got %d", len(slots))
	}
	for i, s := range slots {
		if !s.StartTime.Before(s.EndTime) {
			t.Errorf("slot %d: start %v not before end %v", i, s.StartTime, s.EndTime)
		}
		if s.EndTime.Sub(s.StartTime) != SlotDuration {
			t.Errorf("slot %d: duration %v, want %v", i, s.EndTime.Sub(s.StartTime), SlotDuration)
		}
		want := start.Add(time.Duration(i) * SlotDuration)
		if !s.StartTime.Equal(want) {
			t.Errorf("slot %d: start %v, want %v", i, s.StartTime, want)
		}
	}
	if len(repo.slots) != 4 {
		t.Errorf("expected 4 persisted slots, got %d", len(repo.slots))
	}
}

func TestGenerateSlots_FinalSlotNotClipped(t *testing.T) {
	svc, _, _ := newTestService()
	cg := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	slots, err := svc.GenerateSlots(context.Background(), cg, start, end)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots for a 45m window, got %d", len(slots))
	}
	last := slots[len(slots)-1]
	wantEnd := start.Add(time.Hour)
	if !last.EndTime.Equal(wantEnd) {
		t.Errorf("final slot end %v, want %v (full-length, past the window end)", last.EndTime, wantEnd)
	}
}

func TestGenerateSlots_SkipsDuplicateStarts(t *testing.T) {
	svc, repo, _ := newTestService()
	cg := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	first, err := svc.GenerateSlots(context.Background(), cg, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(first))
	}

	// Overlapping resubmission: only the non-colliding starts survive.
	second, err := svc.GenerateSlots(context.Background(), cg, start, start.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 new slot, got %d", len(second))
	}
	if !second[0].StartTime.Equal(start.Add(time.Hour)) {
		t.Errorf("unexpected new slot start: %v", second[0].StartTime)
	}
	if len(repo.slots) != 3 {
		t.Errorf("expected 3 persisted slots, got %d", len(repo.slots))
	}
}

func TestGenerateSlots_OtherCaregiverUnaffected(t *testing.T) {
	svc, repo, _ := newTestService()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if _, err := svc.GenerateSlots(context.Background(), uuid.New(), start, start.Add(time.Hour)); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if _, err := svc.GenerateSlots(context.Background(), uuid.New(), start, start.Add(time.Hour)); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(repo.slots) != 4 {
		t.Errorf("expected 4 slots across both caregivers, got %d", len(repo.slots))
	}
}

func TestDeleteSlot_Unbooked(t *testing.T) {
	svc, repo, appts := newTestService()
	cg := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	slots, _ := svc.GenerateSlots(context.Background(), cg, start, start.Add(30*time.Minute))

	if err := svc.DeleteSlot(context.Background(), slots[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.slots) != 0 {
		t.Errorf("expected slot removed, %d remain", len(repo.slots))
	}
	if len(appts.deleted) != 0 {
		t.Errorf("no appointment should be deleted for an unbooked slot")
	}
}

func TestDeleteSlot_CascadesLinkedAppointment(t *testing.T) {
	svc, repo, appts := newTestService()
	cg := uuid.New()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	slots, _ := svc.GenerateSlots(context.Background(), cg, start, start.Add(30*time.Minute))

	apptID := uuid.New()
	if ok, _ := repo.Claim(context.Background(), slots[0].ID, apptID); !ok {
		t.Fatal("claim failed")
	}

	if err := svc.DeleteSlot(context.Background(), slots[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.slots) != 0 {
		t.Errorf("expected slot removed, %d remain", len(repo.slots))
	}
	if len(appts.deleted) != 1 || appts.deleted[0] != apptID {
		t.Errorf("expected linked appointment %v deleted, got %v", apptID, appts.deleted)
	}
}

func TestDeleteSlot_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.DeleteSlot(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListOpenTimes_GroupsByStart(t *testing.T) {
	svc, _, _ := newTestService()
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	cg1, cg2 := uuid.New(), uuid.New()
	if _, err := svc.GenerateSlots(context.Background(), cg1, start, start.Add(30*time.Minute)); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.GenerateSlots(context.Background(), cg2, start, start.Add(30*time.Minute)); err != nil {
		t.Fatalf("generate: %v", err)
	}

	times, err := svc.ListOpenTimes(context.Background())
	if err != nil {
		t.Fatalf("list open times: %v", err)
	}
	if len(times) != 1 {
		t.Fatalf("expected one distinct start time, got %d", len(times))
	}
	if len(times[0].CaregiverIDs) != 2 {
		t.Errorf("expected both caregivers free at the shared time, got %v", times[0].CaregiverIDs)
	}
}
