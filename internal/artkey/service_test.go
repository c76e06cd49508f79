// Package artkey provides tests for the record service.
package artkey

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artful-experience/artkey-go/internal/model"
	"github.com/artful-experience/artkey-go/internal/orders"
	"github.com/artful-experience/artkey-go/internal/schema"
	"github.com/artful-experience/artkey-go/internal/storage"
)

// capturingPublisher implements event.Publisher and records what was
// published.
type capturingPublisher struct {
	mu        sync.Mutex
	created   []string
	statuses  []string
	submitted []string
	approvals []string
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) PublishArtKeyCreated(ctx context.Context, rec model.ArtKeyRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, rec.ID)
	return nil
}

func (p *capturingPublisher) PublishStatusChanged(ctx context.Context, rec model.ArtKeyRecord, from model.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, string(from)+"->"+string(rec.Status))
	return nil
}

func (p *capturingPublisher) PublishGuestSubmission(ctx context.Context, artKeyID, kind, entryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, kind)
	return nil
}

func (p *capturingPublisher) PublishApprovalChanged(ctx context.Context, artKeyID, kind, entryID string, state model.ApprovalState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approvals = append(p.approvals, kind+":"+string(state))
	return nil
}

func newTestService(t *testing.T, store storage.Store) (*Service, *capturingPublisher) {
	t.Helper()
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	pub := &capturingPublisher{}
	return NewService(store, pub, validator, nil, 2*time.Second), pub
}

func featuresAllOn() *model.Features {
	return &model.Features{
		ShowGallery: true, ImgAllowUploads: true, ImgRequireApproval: true,
		ShowVideoGallery: true, VidAllowUploads: true, VidRequireApproval: true,
		ShowGuestbook: true, GbAllowEntries: true, GbRequireApproval: true,
	}
}

// TestCreate verifies a created record is a draft with a well-formed token
// and the creation event is published.
func TestCreate(t *testing.T) {
	svc, pub := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	title := "Wedding Keepsake"
	rec, err := svc.Create(ctx, "sess-1", "prod-7", "cart-2", model.ConfigPatch{Title: &title, Features: featuresAllOn()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if rec.Status != model.StatusDraft {
		t.Errorf("Create() Status = %v, want draft", rec.Status)
	}
	if len(rec.Token) != 32 {
		t.Errorf("Create() token length = %d, want 32", len(rec.Token))
	}
	if rec.Config.Title != "Wedding Keepsake" {
		t.Errorf("Create() Config.Title = %q", rec.Config.Title)
	}
	if rec.OwnerSessionID != "sess-1" || rec.ProductID != "prod-7" {
		t.Errorf("Create() owner/product not set: %+v", rec)
	}
	if len(pub.created) != 1 {
		t.Errorf("Create() published %d created events, want 1", len(pub.created))
	}
}

// TestCreateRejectsInvalidConfig verifies schema violations surface as
// invalid input.
func TestCreateRejectsInvalidConfig(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())

	long := strings.Repeat("x", 121)
	_, err := svc.Create(context.Background(), "sess-1", "", "", model.ConfigPatch{Title: &long})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Create() error = %v, want ErrInvalidInput", err)
	}
}

// conflictStore wraps a Store and forces the first n creates to collide.
type conflictStore struct {
	storage.Store
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (s *conflictStore) CreateRecord(ctx context.Context, rec model.ArtKeyRecord) error {
	s.mu.Lock()
	s.attempts++
	remaining := s.conflicts
	if remaining > 0 {
		s.conflicts--
	}
	s.mu.Unlock()
	if remaining > 0 {
		return storage.ErrConflict
	}
	return s.Store.CreateRecord(ctx, rec)
}

// TestCreateRetriesTokenCollision verifies collisions are retried with a
// fresh token and eventually succeed.
func TestCreateRetriesTokenCollision(t *testing.T) {
	store := &conflictStore{Store: storage.NewMemory(), conflicts: 2}
	svc, _ := newTestService(t, store)

	rec, err := svc.Create(context.Background(), "sess-1", "", "", model.ConfigPatch{})
	if err != nil {
		t.Fatalf("Create() error = %v, want success after retries", err)
	}
	if store.attempts != 3 {
		t.Errorf("Create() attempted %d creates, want 3", store.attempts)
	}
	if rec.Token == "" {
		t.Error("Create() returned empty token")
	}
}

// TestCreateGivesUpAfterRepeatedCollisions verifies persistent collisions
// surface as unavailable rather than spinning forever.
func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	store := &conflictStore{Store: storage.NewMemory(), conflicts: 100}
	svc, _ := newTestService(t, store)

	_, err := svc.Create(context.Background(), "sess-1", "", "", model.ConfigPatch{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Create() error = %v, want ErrUnavailable", err)
	}
	if store.attempts != tokenCreateAttempts {
		t.Errorf("Create() attempted %d creates, want %d", store.attempts, tokenCreateAttempts)
	}
}

// timeoutStore blocks every lookup until the context deadline passes.
type timeoutStore struct {
	storage.Store
}

func (s *timeoutStore) GetByToken(ctx context.Context, token string) (*model.ArtKeyRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *timeoutStore) GetByID(ctx context.Context, id string) (*model.ArtKeyRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestTimeoutMapsToUnavailable verifies a store timeout surfaces as
// unavailable and is never conflated with not-found.
func TestTimeoutMapsToUnavailable(t *testing.T) {
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	svc := NewService(&timeoutStore{Store: storage.NewMemory()}, &capturingPublisher{}, validator, nil, 20*time.Millisecond)

	_, _, err = svc.Resolve(context.Background(), "anything", "", false)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("Resolve() timeout reported as not-found")
	}
}

// TestSubmitGuestbookDisabled verifies submissions are refused when the
// feature flag is off.
func TestSubmitGuestbookDisabled(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	rec, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.SubmitGuestbook(ctx, rec.ID, "guest", "hello")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SubmitGuestbook() with flag off: error = %v, want ErrInvalidInput", err)
	}
}

// TestSubmitAndModerate walks a submission through approval and verifies the
// moderation events.
func TestSubmitAndModerate(t *testing.T) {
	svc, pub := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	rec, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{Features: featuresAllOn()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	entry, err := svc.SubmitGuestbook(ctx, rec.ID, "Ana", "Congratulations!")
	if err != nil {
		t.Fatalf("SubmitGuestbook() error = %v", err)
	}
	if entry.ApprovalState != model.ApprovalPending {
		t.Errorf("entry ApprovalState = %v, want pending under require-approval", entry.ApprovalState)
	}

	if err := svc.SetApproval(ctx, rec.ID, "guestbook", entry.EntryID, model.ApprovalApproved); err != nil {
		t.Fatalf("SetApproval() error = %v", err)
	}
	if err := svc.SetApproval(ctx, rec.ID, "guestbook", entry.EntryID, model.ApprovalPending); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetApproval(->pending) error = %v, want ErrInvalidInput", err)
	}

	if len(pub.submitted) != 1 || pub.submitted[0] != "guestbook" {
		t.Errorf("published submissions = %v, want one guestbook event", pub.submitted)
	}
	if len(pub.approvals) != 1 || pub.approvals[0] != "guestbook:approved" {
		t.Errorf("published approvals = %v, want one approval event", pub.approvals)
	}
}

// TestSubmitMediaVideoFlag verifies video submissions honor the video flag
// independently of the image flag.
func TestSubmitMediaVideoFlag(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	features := &model.Features{ImgAllowUploads: true} // videos off
	rec, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{Features: features})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.SubmitMedia(ctx, rec.ID, model.MediaImage, "https://cdn/a.jpg", "g"); err != nil {
		t.Errorf("SubmitMedia(image) error = %v, want nil", err)
	}
	if _, err := svc.SubmitMedia(ctx, rec.ID, model.MediaVideo, "https://cdn/a.mp4", "g"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SubmitMedia(video) with flag off: error = %v, want ErrInvalidInput", err)
	}
}

// TestTransitionPublishesStatusChange verifies lifecycle transitions and the
// emitted event.
func TestTransitionPublishesStatusChange(t *testing.T) {
	svc, pub := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	rec, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Transition(ctx, rec.ID, model.StatusActive, "", "")
	if err != nil {
		t.Fatalf("Transition(draft->active) error = %v", err)
	}
	if got.Status != model.StatusActive || got.ActivatedAt == nil {
		t.Errorf("Transition() = %+v, want active with ActivatedAt set", got)
	}
	if len(pub.statuses) != 1 || pub.statuses[0] != "draft->active" {
		t.Errorf("published statuses = %v, want draft->active", pub.statuses)
	}

	if _, err := svc.Transition(ctx, rec.ID, "deleted", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Transition(unknown status) error = %v, want ErrInvalidInput", err)
	}
}

// TestTransitionChecksOrderFulfillment verifies order-driven activation is
// refused while the cited order is unfulfilled.
func TestTransitionChecksOrderFulfillment(t *testing.T) {
	orderStatus := "processing"
	ordersSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/orders/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"orderId": strings.TrimPrefix(r.URL.Path, "/orders/"),
			"status":  orderStatus,
		})
	}))
	defer ordersSrv.Close()

	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	svc := NewService(storage.NewMemory(), &capturingPublisher{}, validator, orders.New(ordersSrv.URL), 2*time.Second)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Transition(ctx, rec.ID, model.StatusActive, "order-1", ""); !errors.Is(err, ErrOrderUnfulfilled) {
		t.Errorf("Transition() with processing order: error = %v, want ErrOrderUnfulfilled", err)
	}

	orderStatus = "completed"
	got, err := svc.Transition(ctx, rec.ID, model.StatusActive, "order-1", "cart-1")
	if err != nil {
		t.Fatalf("Transition() with completed order: error = %v", err)
	}
	if got.Status != model.StatusActive || got.OrderID != "order-1" {
		t.Errorf("Transition() = %+v, want active with order attached", got)
	}
}

// TestListByOwner verifies the owner listing projection.
func TestListByOwner(t *testing.T) {
	svc, _ := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	for _, title := range []string{"first", "second"} {
		tc := title
		if _, err := svc.Create(ctx, "sess-1", "", "", model.ConfigPatch{Title: &tc}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := svc.ListByOwner(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListByOwner() returned %d summaries, want 2", len(got))
	}
}
