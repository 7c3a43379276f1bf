package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/source"
)

func TestBatchKey(t *testing.T) {
	if got := batchKey(42, ""); got != "chat:42" {
		t.Errorf("got %q", got)
	}
	if got := batchKey(42, "g1"); got != "grp:g1" {
		t.Errorf("got %q", got)
	}
}

func TestClosedBatchGetsNoPhotos(t *testing.T) {
	idle := func(*photoBatch) {}
	key := batchKey(99, "album")
	defer batches.Delete(key)

	if !addPhoto(key, 99, []byte("1"), idle) || addPhoto(key, 99, []byte("2"), idle) {
		t.Fatal("first flag wrong")
	}
	bi, _ := batches.Load(key)
	b := bi.(*photoBatch)
	images, ok := closeBatch(b)
	if !ok || len(images) != 2 {
		t.Fatalf("closeBatch = %d, %v", len(images), ok)
	}

	// фото успело взять батч из map до закрытия
	batches.Store(key, b)
	if !addPhoto(key, 99, []byte("3"), idle) {
		t.Error("photo after close should open a new batch")
	}
	nb, _ := batches.Load(key)
	if nb == b || len(nb.(*photoBatch).images) != 1 {
		t.Errorf("batch reused: %+v", nb)
	}
	if _, ok := closeBatch(b); ok {
		t.Error("batch closed twice")
	}
	closeBatch(nb.(*photoBatch))
}

func TestBatchConcurrentClose(t *testing.T) {
	idle := func(*photoBatch) {}
	key := batchKey(100, "")
	defer batches.Delete(key)

	var (
		mu  sync.Mutex
		got int
		wg  sync.WaitGroup
	)
	take := func() {
		if bi, ok := batches.Load(key); ok {
			imgs, _ := closeBatch(bi.(*photoBatch))
			mu.Lock()
			got += len(imgs)
			mu.Unlock()
		}
	}
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); addPhoto(key, 100, []byte{byte(i)}, idle) }()
		go func() { defer wg.Done(); take() }()
	}
	wg.Wait()
	take()
	if got != n {
		t.Errorf("delivered %d of %d photos", got, n)
	}
}

func TestProfileState(t *testing.T) {
	if getProfile(7) != "" {
		t.Fatal("unexpected profile")
	}
	setProfile(7, "raw")
	defer chatProfile.Delete(int64(7))
	if getProfile(7) != "raw" {
		t.Errorf("got %q", getProfile(7))
	}
}

func TestParseChoice(t *testing.T) {
	cases := []struct {
		data, prefix, value string
		ok                  bool
	}{
		{"engine:azure", cbEngine, "azure", true},
		{"profile:weld", cbProfile, "weld", true},
		{"engine:", "", "", false},
		{"hint_next", "", "", false},
	}
	for _, c := range cases {
		p, v, ok := parseChoice(c.data)
		if p != c.prefix || v != c.value || ok != c.ok {
			t.Errorf("parseChoice(%q) = %q, %q, %v", c.data, p, v, ok)
		}
	}
}

func TestChoiceKeyboard(t *testing.T) {
	kb := choiceKeyboard(cbEngine, []string{"a", "b", "c", "d"})
	if len(kb.InlineKeyboard) != 2 || len(kb.InlineKeyboard[0]) != 3 || len(kb.InlineKeyboard[1]) != 1 {
		t.Fatalf("layout = %+v", kb.InlineKeyboard)
	}
	if d := kb.InlineKeyboard[1][0].CallbackData; d == nil || *d != "engine:d" {
		t.Errorf("callback data = %v", d)
	}
}

func TestCaption(t *testing.T) {
	got := caption(2, 3, []string{"лист 2: bad cell"})
	if !strings.HasPrefix(got, "📊 Листов: 2, таблиц: 3") || !strings.Contains(got, "⚠️ лист 2") {
		t.Errorf("caption = %q", got)
	}
	long := caption(1, 1, []string{strings.Repeat("x", 2000)})
	if n := len([]rune(long)); n != 1001 {
		t.Errorf("long caption has %d runes", n)
	}
}

func TestErrorText(t *testing.T) {
	if s := errorText(fmt.Errorf("azure 429: %w", ocr.ErrTransient)); !strings.Contains(s, "временно") {
		t.Errorf("transient: %q", s)
	}
	if s := errorText(&source.NoRasterError{Pages: []int{1}, Total: 1}); !strings.Contains(s, "векторный") {
		t.Errorf("vector pdf: %q", s)
	}
	if s := errorText(errors.New("boom")); s != "Ошибка OCR: boom" {
		t.Errorf("plain: %q", s)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	b, err := download(srv.URL + "/file")
	if err != nil || string(b) != "png-bytes" {
		t.Errorf("download = %q, %v", b, err)
	}
	if _, err := download(srv.URL + "/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v", err)
	}
}
