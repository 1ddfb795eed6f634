package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// FetchedImage is a downloaded photo ready to be stored.
type FetchedImage struct {
	Data     []byte
	Filename string
}

// MediaFetcher downloads the largest attached photo of a post. A nil
// result with a nil error means "no image" and is not a sync failure.
type MediaFetcher interface {
	FetchLargestPhoto(ctx context.Context, photos []PhotoSize) (*FetchedImage, error)
}

const maxPhotoBytes = 20 << 20

// BotMediaFetcher fetches photos through the Bot API: getFile for the
// path, then a plain download from the file endpoint.
type BotMediaFetcher struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
	logger *zap.Logger
}

func NewBotMediaFetcher(bot *tgbotapi.BotAPI, logger *zap.Logger) *BotMediaFetcher {
	return &BotMediaFetcher{
		bot:    bot,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (f *BotMediaFetcher) FetchLargestPhoto(ctx context.Context, photos []PhotoSize) (*FetchedImage, error) {
	if f.bot == nil || len(photos) == 0 {
		return nil, nil
	}
	// size-ascending list, the last entry is the original
	largest := photos[len(photos)-1]

	file, err := f.bot.GetFile(tgbotapi.FileConfig{FileID: largest.FileID})
	if err != nil {
		f.logger.Warn("getFile не удался, пост будет без картинки",
			zap.String("file_id", largest.FileID), zap.Error(err))
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(f.bot.Token), nil)
	if err != nil {
		return nil, nil
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("скачивание файла не удалось", zap.String("file_id", largest.FileID), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("скачивание файла вернуло не-2xx",
			zap.String("file_id", largest.FileID), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil || len(data) == 0 {
		return nil, nil
	}

	name := path.Base(file.FilePath)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("%s.jpg", largest.FileID)
	}
	return &FetchedImage{Data: data, Filename: name}, nil
}
