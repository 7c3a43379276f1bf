// Package engines builds the OCR registry from the service configuration.
package engines

import (
	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/ocr/azure"
	"drawing-ocr/api/internal/ocr/gemini"
	"drawing-ocr/api/internal/ocr/openai"
	"drawing-ocr/api/internal/ocr/tesseract"
	"drawing-ocr/api/internal/ocr/yandex"
)

var Logger = logger.GetLogger("ocr/engines")

// FromConfig registers every backend; ones without credentials stay listed
// and fail with ocr.ErrInvalidCredentials when used.
func FromConfig(cfg *config.Config) *ocr.Engines {
	list := []ocr.Engine{
		azure.New(cfg.AzureEndpoint, cfg.AzureKey, cfg.AzureModel),
		yandex.New(cfg.YCOAuthToken, cfg.YCFolderID),
		gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
	}
	if tesseract.Enabled {
		list = append(list, tesseract.New(cfg.TesseractLangs...))
	}
	engs := ocr.NewEngines(cfg.OCREngine, list...)
	if _, err := engs.GetEngine(""); err != nil {
		Logger.Warn("default engine is not available", "engine", cfg.OCREngine, "err", err)
	}
	Logger.Info("engines ready", "default", engs.Default(), "engines", engs.Names())
	return engs
}
