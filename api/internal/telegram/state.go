package telegram

import (
	"strconv"
	"sync"
	"time"
)

const (
	debounce = 1200 * time.Millisecond
	// Bot API не отдаёт файлы больше 20 МБ
	maxDownload = 20 << 20
)

// photoBatch collects an album; every photo is one sheet of the drawing.
type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
	closed bool // забран в обработку, новые фото идут в новый батч
}

var (
	batches     sync.Map // key -> *photoBatch
	chatProfile sync.Map // chatID -> profile name
)

func batchKey(chatID int64, mediaGroupID string) string {
	if mediaGroupID != "" {
		return "grp:" + mediaGroupID
	}
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// addPhoto appends data to the open batch under key, creating one if needed,
// and restarts its debounce timer; onIdle fires once the album is quiet.
// A batch already taken for processing is never appended to.
func addPhoto(key string, chatID int64, data []byte, onIdle func(*photoBatch)) (first bool) {
	for {
		bi, _ := batches.LoadOrStore(key, &photoBatch{ChatID: chatID, Key: key})
		b := bi.(*photoBatch)

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			batches.CompareAndDelete(key, b)
			continue
		}
		b.images = append(b.images, data)
		first = len(b.images) == 1
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(debounce, func() { onIdle(b) })
		b.mu.Unlock()
		return first
	}
}

// closeBatch takes b out of circulation and returns its images. The second
// close of the same batch gets nothing.
func closeBatch(b *photoBatch) ([][]byte, bool) {
	batches.CompareAndDelete(b.Key, b)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	return append([][]byte(nil), b.images...), true
}

func setProfile(chatID int64, name string) { chatProfile.Store(chatID, name) }
func getProfile(chatID int64) string {
	if v, ok := chatProfile.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return ""
}
