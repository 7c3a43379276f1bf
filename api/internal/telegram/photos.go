package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"drawing-ocr/api/internal/export"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/normalize"
	"drawing-ocr/api/internal/source"
)

const processTimeout = 5 * time.Minute

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	// берём самое большое превью
	ph := msg.Photo[len(msg.Photo)-1]
	data, err := r.fetch(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	if addPhoto(batchKey(cid, msg.MediaGroupID), cid, data, r.processBatch) {
		r.send(cid, "Фото принято. Если листов несколько — пришлите их альбомом, верну одну книгу xlsx.")
	}
}

func (r *Router) processBatch(b *photoBatch) {
	images, ok := closeBatch(b)
	if !ok {
		return
	}

	var sheets []sheet
	for _, data := range images {
		p, err := source.First(data)
		if err != nil {
			r.SendError(b.ChatID, err)
			return
		}
		sheets = append(sheets, sheet{docID: extract.DocID(data), page: p})
	}
	r.run(b.ChatID, sheets)
}

// acceptDocument handles files sent "as document": PDF, TIFF or a lossless PNG.
func (r *Router) acceptDocument(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	d := msg.Document
	if d.FileSize > maxDownload {
		r.send(cid, "Файл больше 20 МБ — Telegram не даст его скачать. Уменьшите разрешение или пришлите по листам.")
		return
	}
	data, err := r.fetch(d.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	pages, kind, err := source.Pages(data)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	Logger.Info("document received", "chat", cid, "name", d.FileName, "kind", kind, "pages", len(pages))
	r.send(cid, fmt.Sprintf("Файл принят: %d стр., обрабатываю.", len(pages)))

	docID := extract.DocID(data)
	sheets := make([]sheet, len(pages))
	for i, p := range pages {
		id := docID
		if len(pages) > 1 {
			id = extract.DocID(fmt.Appendf(nil, "%s#%d", docID, i))
		}
		sheets[i] = sheet{docID: id, page: p}
	}
	r.run(cid, sheets)
}

type sheet struct {
	docID string
	page  source.Page
}

// run processes the sheets one by one and replies with a single workbook.
func (r *Router) run(chatID int64, sheets []sheet) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	prof := r.profile(chatID)
	eng := r.EngManager.Get(chatID)
	var (
		tables   []normalize.Records
		warnings []string
	)
	for i, s := range sheets {
		res, ok := r.Cache.Get(s.docID)
		if !ok || res.Profile != prof.Name || res.Engine != eng.Name() {
			var err error
			res, err = r.Pipe.Process(ctx, s.docID, s.page.Image, prof, eng)
			if res == nil {
				r.SendError(chatID, fmt.Errorf("лист %d: %w", i+1, err))
				return
			}
			if err != nil {
				// таблицы без нарушений всё равно отдаём
				warnings = append(warnings, fmt.Sprintf("лист %d: %v", i+1, err))
			} else {
				r.Cache.Put(res)
				r.save(ctx, res)
			}
		}
		for _, t := range res.Tables {
			tables = append(tables, t.Data)
		}
	}
	if len(tables) == 0 {
		r.send(chatID, "Таблиц не найдено. Попробуйте другой профиль: /profile")
		return
	}

	data, err := export.Workbook(tables)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "data.xlsx", Bytes: data})
	doc.Caption = caption(len(sheets), len(tables), warnings)
	if _, err := r.Bot.Send(doc); err != nil {
		Logger.Error("send xlsx", "chat", chatID, "err", err)
	}
}

func (r *Router) save(ctx context.Context, res *extract.Result) {
	if r.Results == nil {
		return
	}
	if err := r.Results.Upsert(ctx, res); err != nil {
		Logger.Warn("result not persisted", "doc", res.DocID, "err", err)
	}
}

func caption(sheets, tables int, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Листов: %d, таблиц: %d", sheets, tables)
	for _, w := range warnings {
		b.WriteString("\n⚠️ ")
		b.WriteString(w)
	}
	// лимит подписи в Telegram: 1024 символа
	if s := []rune(b.String()); len(s) > 1000 {
		return string(s[:1000]) + "…"
	}
	return b.String()
}

func (r *Router) fetch(fileID string) ([]byte, error) {
	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, err
	}
	return download(file.Link(r.Bot.Token))
}

func download(url string) ([]byte, error) {
	resp, err := httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
