package subtitles_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"videofront/internal/cache"
	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/store"
	"videofront/internal/subtitles"
	"videofront/internal/testsupport"
)

type fixture struct {
	store   *store.Store
	backend *testsupport.FakeBackend
	cache   *cache.VideoCache
	service *subtitles.Service
}

func newFixture(t *testing.T, maxBytes int64) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fb := testsupport.NewFakeBackend("LD")
	vc := cache.NewVideoCache(cache.NewMemoryStore(), 0, logging.NewNop())
	if _, _, err := st.GetOrCreateVideo(context.Background(), "vid", "clip", ""); err != nil {
		t.Fatalf("GetOrCreateVideo: %v", err)
	}
	return fixture{
		store:   st,
		backend: fb,
		cache:   vc,
		service: subtitles.NewService(st, fb, vc, maxBytes, logging.NewNop()),
	}
}

const sampleSRT = "1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\n\r\n"

func TestUploadStoresNormalizedSubtitle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if err := f.cache.Set(ctx, "vid", 0, map[string]string{"title": "stale"}); err != nil {
		t.Fatalf("cache.Set: %v", err)
	}

	sub, err := f.service.Upload(ctx, "vid", "FR", []byte(sampleSRT))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if sub.Language != "fr" || len(sub.PublicID) != store.PublicIDLength {
		t.Fatalf("unexpected subtitle %#v", sub)
	}
	content, ok := f.backend.Subtitles["vid/"+sub.PublicID+".fr"]
	if !ok {
		t.Fatalf("subtitle not uploaded: %v", f.backend.Subtitles)
	}
	if want := "WEBVTT\n\n00:01.000 --> 00:02.500\nHello\n"; string(content) != want {
		t.Fatalf("unexpected content %q", content)
	}

	var cached map[string]string
	if hit, _ := f.cache.Get(ctx, "vid", &cached); hit {
		t.Fatal("expected cache to be invalidated")
	}
}

func TestUploadRejectsUndetectedFormat(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.service.Upload(context.Background(), "vid", "en", []byte("not a subtitle"))
	if !errors.Is(err, subtitles.ErrFormatUndetected) {
		t.Fatalf("expected ErrFormatUndetected, got %v", err)
	}
	if err.Error() != "Could not detect subtitle format" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(f.backend.Subtitles) != 0 {
		t.Fatal("nothing should be uploaded")
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, 16)
	ctx := context.Background()

	cases := []struct {
		name   string
		video  string
		lang   string
		raw    string
		marker error
	}{
		{name: "too large", video: "vid", lang: "en", raw: strings.Repeat("x", 17), marker: services.ErrValidation},
		{name: "bad language", video: "vid", lang: "klingon!", raw: "WEBVTT\n", marker: services.ErrValidation},
		{name: "missing video", video: "nope", lang: "en", raw: "WEBVTT\n", marker: services.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Upload(ctx, tc.video, tc.lang, []byte(tc.raw))
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestUploadRejectsInvalidUTF8AsHardError(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.service.Upload(context.Background(), "vid", "en", []byte{'W', 'E', 0xff, 0xfe})
	if !errors.Is(err, subtitles.ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
	for _, marker := range []error{services.ErrValidation, subtitles.ErrFormatUndetected} {
		if errors.Is(err, marker) {
			t.Fatalf("decode failure must not carry %v: %v", marker, err)
		}
	}
	if len(f.backend.Subtitles) != 0 {
		t.Fatalf("expected nothing stored, got %v", f.backend.Subtitles)
	}
}

func TestDeleteRemovesFileAndRow(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	sub, err := f.service.Upload(ctx, "vid", "en", []byte("WEBVTT\n\n00:01.000 --> 00:02.000\nHi\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := f.service.Delete(ctx, sub.PublicID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.backend.Subtitles) != 0 {
		t.Fatalf("expected backend file removed, got %v", f.backend.Subtitles)
	}
	if got, _ := f.store.GetSubtitle(ctx, sub.PublicID); got != nil {
		t.Fatalf("expected row removed, got %#v", got)
	}
	if err := f.service.Delete(ctx, sub.PublicID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
