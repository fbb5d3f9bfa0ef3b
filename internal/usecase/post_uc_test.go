package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/usecase"
)

type postFixture struct {
	db      *memDB
	clock   *testClock
	storage *fakeStorage
	uc      usecase.PostUseCase
}

func newPostFixture(profiles ...*model.Profile) *postFixture {
	db := newMemDB()
	for _, p := range profiles {
		db.putProfile(p)
	}
	clock := newTestClock()
	storage := &fakeStorage{}
	uc := usecase.NewPostUseCase(db.Posts(), db.Profiles(), db, storage, "https://a2z.test/", newTestLogger(), clock.Now)
	return &postFixture{db: db, clock: clock, storage: storage, uc: uc}
}

func (f *postFixture) create(t *testing.T, title string, media ...string) *model.Post {
	t.Helper()
	p, err := f.uc.Create(context.Background(), usecase.CreatePostInput{UserID: sellerID, Title: title, PriceCents: 15000, MediaURLs: media})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return p
}

func TestPostUseCase_CreateSlugs(t *testing.T) {
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))

	first := f.create(t, "  Café Crème Espresso Machine ")
	if first.Slug != "cafe-creme-espresso-machine" || first.Title != "Café Crème Espresso Machine" {
		t.Fatalf("first = %q / %q", first.Slug, first.Title)
	}
	if first.Currency != "ZAR" || !first.IsActive || first.OwnerID != sellerID {
		t.Fatalf("defaults not applied: %+v", first)
	}
	second := f.create(t, "Café Crème espresso machine!")
	third := f.create(t, "cafe creme espresso machine")
	if second.Slug != "cafe-creme-espresso-machine-2" || third.Slug != "cafe-creme-espresso-machine-3" {
		t.Fatalf("suffixes = %q, %q", second.Slug, third.Slug)
	}

	long := f.create(t, strings.Repeat("abcdefghij ", 10))
	if len(long.Slug) > model.MaxSlugLen {
		t.Fatalf("slug too long: %d", len(long.Slug))
	}
}

func TestPostUseCase_SlugsArePerOwner(t *testing.T) {
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime), freeProfile(otherID, "sipho", baseTime))
	a := f.create(t, "Bicycle")
	b, err := f.uc.Create(context.Background(), usecase.CreatePostInput{UserID: otherID, Title: "Bicycle"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Slug != "bicycle" || b.Slug != "bicycle" {
		t.Fatalf("slugs = %q, %q", a.Slug, b.Slug)
	}
}

func TestPostUseCase_ListingLimit(t *testing.T) {
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))
	for i := 0; i < 5; i++ {
		f.create(t, fmt.Sprintf("Item %d", i))
	}
	_, err := f.uc.Create(context.Background(), usecase.CreatePostInput{UserID: sellerID, Title: "One too many"})
	if !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("err = %v, want limit exceeded", err)
	}
	if n, _ := f.db.Posts().CountActiveByOwner(context.Background(), nil, sellerID); n != 5 {
		t.Fatalf("active = %d", n)
	}
}

func TestPostUseCase_BusinessIsUncapped(t *testing.T) {
	f := newPostFixture(paidProfile(sellerID, "thandi", model.TierBusiness, baseTime.AddDate(0, 0, 20)))
	for i := 0; i < 60; i++ {
		f.create(t, fmt.Sprintf("Item %d", i))
	}
}

func TestPostUseCase_LapsedPaidFallsBackToFreeLimits(t *testing.T) {
	f := newPostFixture(paidProfile(sellerID, "thandi", model.TierPremium, baseTime.AddDate(0, 0, -1)))
	for i := 0; i < 5; i++ {
		f.create(t, fmt.Sprintf("Item %d", i))
	}
	if _, err := f.uc.Create(context.Background(), usecase.CreatePostInput{UserID: sellerID, Title: "Sixth"}); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestPostUseCase_CreateValidation(t *testing.T) {
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))
	ctx := context.Background()

	cases := []struct {
		name  string
		in    usecase.CreatePostInput
		field string
	}{
		{"short title", usecase.CreatePostInput{UserID: sellerID, Title: " ab "}, "title"},
		{"negative price", usecase.CreatePostInput{UserID: sellerID, Title: "Chair", PriceCents: -1}, "price_cents"},
		{"currency", usecase.CreatePostInput{UserID: sellerID, Title: "Chair", Currency: "USD"}, "currency"},
		{"foreign media host", usecase.CreatePostInput{UserID: sellerID, Title: "Chair", MediaURLs: []string{"https://evil.test/x.jpg"}}, "media_urls[0]"},
		{"another seller's media", usecase.CreatePostInput{UserID: sellerID, Title: "Chair", MediaURLs: []string{mediaURL(sellerID, "a.jpg"), mediaURL(otherID, "b.jpg")}}, "media_urls[1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Create(ctx, tc.in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Details[0].Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Details[0].Field, tc.field)
			}
		})
	}

	t.Run("too many images", func(t *testing.T) {
		media := []string{mediaURL(sellerID, "1.jpg"), mediaURL(sellerID, "2.jpg"), mediaURL(sellerID, "3.jpg"), mediaURL(sellerID, "4.jpg")}
		_, err := f.uc.Create(ctx, usecase.CreatePostInput{UserID: sellerID, Title: "Chair", MediaURLs: media})
		if !errors.Is(err, domain.ErrLimitExceeded) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestPostUseCase_Update(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime), freeProfile(otherID, "sipho", baseTime))
	p := f.create(t, "Old bike", mediaURL(sellerID, "a.jpg"), mediaURL(sellerID, "b.jpg"))

	title := "Vintage road bike"
	price := int64(250000)
	media := []string{mediaURL(sellerID, "b.jpg")}
	updated, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: p.ID, Title: &title, PriceCents: &price, MediaURLs: &media})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title || updated.PriceCents != price || len(updated.MediaURLs) != 1 {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Slug != p.Slug {
		t.Fatalf("slug changed to %q", updated.Slug)
	}
	if keys := f.storage.deletedKeys(); len(keys) != 1 || keys[0] != "posts/"+sellerID+"/a.jpg" {
		t.Fatalf("deleted = %v", keys)
	}

	t.Run("non-owner is forbidden", func(t *testing.T) {
		other := "Mine now"
		_, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: otherID, PostID: p.ID, Title: &other})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("err = %v", err)
		}
		if f.db.post(p.ID).Title != title {
			t.Fatal("foreign update applied")
		}
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: "nope", Title: &title})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		_, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: "abc", Title: &title})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("reactivation respects the listing cap", func(t *testing.T) {
		off := false
		if _, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: p.ID, IsActive: &off}); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 5; i++ {
			f.create(t, fmt.Sprintf("Filler %d", i))
		}
		on := true
		_, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: p.ID, IsActive: &on})
		if !errors.Is(err, domain.ErrLimitExceeded) {
			t.Fatalf("err = %v", err)
		}
		if f.db.post(p.ID).IsActive {
			t.Fatal("post reactivated past the cap")
		}
	})
}

func TestPostUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))
	p := f.create(t, "Lamp", mediaURL(sellerID, "lamp.jpg"))

	if err := f.uc.Delete(ctx, otherID, p.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign delete err = %v", err)
	}
	if err := f.uc.Delete(ctx, sellerID, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.db.post(p.ID) != nil {
		t.Fatal("post still stored")
	}
	if keys := f.storage.deletedKeys(); len(keys) != 1 {
		t.Fatalf("deleted = %v", keys)
	}
	if err := f.uc.Delete(ctx, sellerID, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if err := f.uc.Delete(ctx, sellerID, "abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("malformed id err = %v", err)
	}
}

func TestPostUseCase_ListMine(t *testing.T) {
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))
	posts, err := f.uc.ListMine(context.Background(), sellerID)
	if err != nil || posts == nil || len(posts) != 0 {
		t.Fatalf("empty list = %v %v", posts, err)
	}
	f.create(t, "One")
	f.clock.Advance(1)
	f.create(t, "Two")
	posts, _ = f.uc.ListMine(context.Background(), sellerID)
	if len(posts) != 2 {
		t.Fatalf("len = %d", len(posts))
	}
}

func TestPostUseCase_GetPublic(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(freeProfile(sellerID, "thandi", baseTime))
	p := f.create(t, "Leather Couch")

	view, err := f.uc.GetPublic(ctx, "Thandi", "leather-couch")
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if view.CanonicalURL != "https://a2z.test/thandi/leather-couch" {
		t.Fatalf("canonical = %q", view.CanonicalURL)
	}
	if view.Price != "R150.00" || view.Seller.Username != "thandi" {
		t.Fatalf("view = %+v", view)
	}
	u, err := url.Parse(view.WhatsAppURL)
	if err != nil || u.Host != "wa.me" {
		t.Fatalf("whatsapp = %q", view.WhatsAppURL)
	}
	if text := u.Query().Get("text"); !strings.Contains(text, view.CanonicalURL) || !strings.Contains(text, "Leather Couch") {
		t.Fatalf("share text = %q", text)
	}

	off := false
	if _, err := f.uc.Update(ctx, usecase.UpdatePostInput{UserID: sellerID, PostID: p.ID, IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.GetPublic(ctx, "thandi", "leather-couch"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("inactive post err = %v", err)
	}
	if _, err := f.uc.GetPublic(ctx, "nobody", "leather-couch"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown seller err = %v", err)
	}
}
