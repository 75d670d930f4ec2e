package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog/log"
)

// Telegram recompresses photos; larger images go out as documents to stay readable.
const maxPhotoSize = 150000

// sendChart uploads a PNG chart as a photo, or as a document when it is too large.
func (h *botHandler) sendChart(chatID int64, img []byte, fileName, caption string) {
	file := tgbotapi.FileBytes{Name: fileName, Bytes: img}

	var msg tgbotapi.Chattable
	if len(img) < maxPhotoSize {
		photo := tgbotapi.NewPhotoUpload(chatID, file)
		photo.Caption = caption
		msg = photo
	} else {
		doc := tgbotapi.NewDocumentUpload(chatID, file)
		doc.Caption = caption
		msg = doc
	}

	if _, err := h.api.Send(msg); err != nil {
		log.Error().Err(err).Str("file", fileName).Int("bytes", len(img)).Msg("send chart")
		h.reply(chatID, "그래프를 보내지 못했습니다: "+err.Error())
	}
}
