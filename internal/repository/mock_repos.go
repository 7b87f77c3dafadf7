package repository

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/delish/storefront/internal/models"
)

// In-memory repository implementations for tests and local development
// without a running MongoDB. They mirror the Mongo implementations'
// observable behavior: slug deduplication, pagination signalling, token
// expiry, heart-set semantics.

type MockStoreRepository struct {
	mu     sync.RWMutex
	stores []models.Store

	// Reviews, when set, backs TopRated the way the aggregation joins the
	// reviews collection.
	Reviews *MockReviewRepository
}

func NewMockStoreRepository() *MockStoreRepository {
	return &MockStoreRepository{}
}

func (r *MockStoreRepository) countSlugMatches(base string, exclude primitive.ObjectID) int64 {
	re := regexp.MustCompile("(?i)" + slugPattern(base))
	var n int64
	for _, s := range r.stores {
		if s.ID != exclude && re.MatchString(s.Slug) {
			n++
		}
	}
	return n
}

func (r *MockStoreRepository) Create(_ context.Context, store *models.Store) error {
	if err := validateStore(store); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	store.ID = primitive.NewObjectID()
	store.CreatedAt = time.Now()
	store.Location.Type = "Point"
	base := slugify(store.Name)
	store.Slug = candidateSlug(base, r.countSlugMatches(base, primitive.NilObjectID))
	r.stores = append(r.stores, *store)
	return nil
}

func (r *MockStoreRepository) Update(_ context.Context, id primitive.ObjectID, changes *models.Store) (*models.Store, error) {
	if err := validateStore(changes); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.stores {
		if r.stores[i].ID != id {
			continue
		}
		if changes.Name != r.stores[i].Name {
			base := slugify(changes.Name)
			r.stores[i].Slug = candidateSlug(base, r.countSlugMatches(base, id))
		}
		r.stores[i].Name = changes.Name
		r.stores[i].Description = changes.Description
		r.stores[i].Tags = changes.Tags
		r.stores[i].Location = changes.Location
		r.stores[i].Location.Type = "Point"
		if changes.Photo != "" {
			r.stores[i].Photo = changes.Photo
		}
		copied := r.stores[i]
		return &copied, nil
	}
	return nil, models.ErrNotFound
}

func (r *MockStoreRepository) ByID(_ context.Context, id primitive.ObjectID) (*models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if s.ID == id {
			copied := s
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MockStoreRepository) ByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []models.Store{}
	for _, s := range r.stores {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MockStoreRepository) BySlug(_ context.Context, slug string) (*models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		if s.Slug == slug {
			copied := s
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MockStoreRepository) List(_ context.Context, page int64) (*models.StorePage, error) {
	if page < 1 {
		page = 1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sorted := make([]models.Store, len(r.stores))
	copy(sorted, r.stores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	total := int64(len(sorted))
	pages := pageCount(total, storesPerPage)
	skip := (page - 1) * storesPerPage
	if skip >= total && skip > 0 {
		last := pages
		if last < 1 {
			last = 1
		}
		return nil, &models.PageOutOfRangeError{Requested: page, LastPage: last}
	}
	end := skip + storesPerPage
	if end > total {
		end = total
	}
	return &models.StorePage{Stores: sorted[skip:end], Page: page, Pages: pages, Count: total}, nil
}

func (r *MockStoreRepository) ByTag(_ context.Context, tag string) ([]models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Store{}
	for _, s := range r.stores {
		if tag == "" {
			if len(s.Tags) > 0 {
				out = append(out, s)
			}
			continue
		}
		for _, t := range s.Tags {
			if t == tag {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *MockStoreRepository) TagCounts(_ context.Context) ([]models.TagCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[string]int{}
	for _, s := range r.stores {
		for _, t := range s.Tags {
			counts[t]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, models.TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (r *MockStoreRepository) Search(_ context.Context, query string) ([]models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	out := []models.Store{}
	for _, s := range r.stores {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Description), q) {
			out = append(out, s)
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockStoreRepository) Near(_ context.Context, lng, lat float64) ([]models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Store{}
	for _, s := range r.stores {
		out = append(out, s)
		if len(out) == nearLimit {
			break
		}
	}
	return out, nil
}

func (r *MockStoreRepository) TopRated(ctx context.Context) ([]models.TopStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.TopStore{}
	if r.Reviews == nil {
		return out, nil
	}
	for _, s := range r.stores {
		reviews, err := r.Reviews.ForStore(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if len(reviews) < 2 {
			continue
		}
		var sum float64
		for _, rv := range reviews {
			sum += float64(rv.Rating)
		}
		out = append(out, models.TopStore{
			ID:            s.ID,
			Name:          s.Name,
			Slug:          s.Slug,
			Photo:         s.Photo,
			Reviews:       reviews,
			AverageRating: sum / float64(len(reviews)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AverageRating > out[j].AverageRating })
	if int64(len(out)) > topStoresLimit {
		out = out[:topStoresLimit]
	}
	return out, nil
}

type MockUserRepository struct {
	mu    sync.RWMutex
	users []models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := normalizeEmail(user.Email)
	for _, u := range r.users {
		if u.Email == email {
			return models.ErrDuplicateEmail
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.Name = strings.TrimSpace(user.Name)
	user.CreatedAt = time.Now()
	if user.Hearts == nil {
		user.Hearts = []primitive.ObjectID{}
	}
	r.users = append(r.users, *user)
	return nil
}

func (r *MockUserRepository) ByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			copied := u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MockUserRepository) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = normalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MockUserRepository) SetResetToken(_ context.Context, email, token string, expires time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = normalizeEmail(email)
	for i := range r.users {
		if r.users[i].Email == email {
			r.users[i].ResetPasswordToken = token
			r.users[i].ResetPasswordExpires = expires
			copied := r.users[i]
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MockUserRepository) ByResetToken(_ context.Context, token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ResetPasswordToken == token && u.ResetPasswordToken != "" && u.ResetPasswordExpires.After(time.Now()) {
			copied := u
			return &copied, nil
		}
	}
	return nil, models.ErrTokenInvalid
}

func (r *MockUserRepository) ResetPassword(_ context.Context, token, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ResetPasswordToken == token && token != "" && r.users[i].ResetPasswordExpires.After(time.Now()) {
			r.users[i].Password = passwordHash
			r.users[i].ResetPasswordToken = ""
			r.users[i].ResetPasswordExpires = time.Time{}
			copied := r.users[i]
			return &copied, nil
		}
	}
	return nil, models.ErrTokenInvalid
}

func (r *MockUserRepository) ToggleHeart(_ context.Context, userID, storeID primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID != userID {
			continue
		}
		hearts := r.users[i].Hearts
		removed := false
		for j, id := range hearts {
			if id == storeID {
				r.users[i].Hearts = append(hearts[:j:j], hearts[j+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			r.users[i].Hearts = append(hearts, storeID)
		}
		copied := r.users[i]
		return &copied, nil
	}
	return nil, models.ErrNotFound
}

func (r *MockUserRepository) UpdateProfile(_ context.Context, userID primitive.ObjectID, name, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range r.users {
		if u.ID != userID && u.Email == email {
			return nil, models.ErrDuplicateEmail
		}
	}
	for i := range r.users {
		if r.users[i].ID == userID {
			r.users[i].Name = strings.TrimSpace(name)
			r.users[i].Email = email
			copied := r.users[i]
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

type MockReviewRepository struct {
	mu      sync.RWMutex
	reviews []models.Review
}

func NewMockReviewRepository() *MockReviewRepository {
	return &MockReviewRepository{}
}

func (r *MockReviewRepository) Add(_ context.Context, review *models.Review) error {
	review.Text = strings.TrimSpace(review.Text)
	if review.Text == "" {
		return &models.ValidationError{Field: "text", Message: "your review must have text"}
	}
	if review.Rating < 1 || review.Rating > 5 {
		return &models.ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	review.ID = primitive.NewObjectID()
	review.CreatedAt = time.Now()
	r.reviews = append(r.reviews, *review)
	return nil
}

func (r *MockReviewRepository) ForStore(_ context.Context, storeID primitive.ObjectID) ([]models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Review{}
	for _, rv := range r.reviews {
		if rv.Store == storeID {
			out = append(out, rv)
		}
	}
	return out, nil
}
