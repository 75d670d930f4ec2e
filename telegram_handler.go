package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog/log"

	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botHandler struct {
	api sender
	p   *pipeline.Pipeline
}

const welcomeText = `안녕하세요! 지역별 범죄 통계를 보여드립니다.

명령어:
/categories - 범죄 대분류 목록
/units - 시/도 목록
/bar <대분류> [시/도] - 중분류별 발생 건수 막대 그래프
/pie <대분류> [시/도] - 지역별 발생 비율 원 그래프
/anomalies <대분류> [시/도] - 이상 지역 탐지

예: /pie 지능범죄 경기`

// runBot polls Telegram until ctx is cancelled.
func runBot(ctx context.Context, p *pipeline.Pipeline, token string) error {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("telegram bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	h := &botHandler{api: api, p: p}
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
				continue
			}
			go h.handleText(update.Message.Chat.ID, update.Message.Text)
		}
	}
}

// splitCommand turns "/pie@crime_bot 지능범죄 경기" into ("pie", "지능범죄 경기").
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ := strings.Cut(text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// parseFilterArgs reads "<category> [unit]". The last word is taken as the unit only
// when it names a unit of the table or "전체".
func (h *botHandler) parseFilterArgs(args string) models.Filter {
	f := models.Filter{Unit: models.AllUnits}
	words := strings.Fields(args)
	if n := len(words); n > 1 && h.isUnit(words[n-1]) {
		f.Unit = words[n-1]
		words = words[:n-1]
	}
	f.Category = strings.Join(words, " ")
	if f.Category == "" {
		if cats := h.p.Table().Categories(); len(cats) > 0 {
			f.Category = cats[0]
		}
	}
	return f
}

func (h *botHandler) isUnit(word string) bool {
	if word == models.AllUnits {
		return true
	}
	for _, u := range h.p.Table().Units() {
		if u == word {
			return true
		}
	}
	return false
}

func (h *botHandler) handleText(chatID int64, text string) {
	cmd, args := splitCommand(text)
	switch cmd {
	case "start", "help":
		h.reply(chatID, welcomeText)
	case "categories":
		h.reply(chatID, "범죄 대분류:\n"+strings.Join(h.p.Table().Categories(), "\n"))
	case "units":
		h.reply(chatID, "시/도:\n"+strings.Join(append([]string{models.AllUnits}, h.p.Table().Units()...), "\n"))
	case pipeline.ChartBar, pipeline.ChartPie:
		h.handleChart(chatID, cmd, h.parseFilterArgs(args))
	case "anomalies":
		h.handleAnomalies(chatID, h.parseFilterArgs(args))
	default:
		h.reply(chatID, "알 수 없는 명령입니다. /help 를 입력하세요.")
	}
}

func (h *botHandler) run(chatID int64, f models.Filter, detect bool) *pipeline.View {
	v, err := h.p.RunWith(f, detect)
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("bot pipeline pass rejected")
		if errors.Is(err, pipeline.ErrUnknownCategory) {
			h.reply(chatID, fmt.Sprintf("알 수 없는 대분류입니다: %s\n/categories 로 목록을 확인하세요.", f.Category))
		} else {
			h.reply(chatID, "요청을 처리할 수 없습니다: "+err.Error())
		}
		return nil
	}
	if v.HasNotice(models.NoticeEmptyResult) {
		h.reply(chatID, "선택한 조건에 해당하는 데이터가 없습니다.")
		return nil
	}
	return v
}

func (h *botHandler) handleChart(chatID int64, kind string, f models.Filter) {
	v := h.run(chatID, f, false)
	if v == nil {
		return
	}
	c := v.Bar
	if kind == pipeline.ChartPie {
		c = v.Pie
	}
	if !c.Drawable() {
		h.reply(chatID, c.Summary)
		return
	}
	img := c.PNG
	if img == nil {
		var err error
		if img, err = h.p.RenderPNG(c); err != nil {
			log.Error().Err(err).Str("chart", kind).Msg("render png")
			h.reply(chatID, "그래프를 그리지 못했습니다.")
			return
		}
	}
	h.sendChart(chatID, img, chartFileName(kind, v.Filter), c.Title)

	if kind == pipeline.ChartPie {
		if detail := GenerateOtherDetailTable(v); detail != "" {
			h.replyPre(chatID, detail)
		}
	}
}

func (h *botHandler) handleAnomalies(chatID int64, f models.Filter) {
	v := h.run(chatID, f, true)
	if v == nil {
		return
	}
	if len(v.Anomalies) > 0 {
		h.replyPre(chatID, GenerateAnomaliesTable(v.Anomalies))
		return
	}
	for _, n := range v.Notices {
		if n.Kind == models.NoticeInsufficientData || n.Kind == models.NoticeNoAnomalies {
			h.reply(chatID, n.Message)
		}
	}
}

func (h *botHandler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("telegram send")
	}
}

// replyPre sends a monospace table.
func (h *botHandler) replyPre(chatID int64, table string) {
	msg := tgbotapi.NewMessage(chatID, "<pre>\n"+html.EscapeString(table)+"\n</pre>")
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("telegram send")
	}
}
