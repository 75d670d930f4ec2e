package main

import (
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/crime_stats/domain/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	fail bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.fail {
		if _, ok := c.(tgbotapi.MessageConfig); !ok {
			return tgbotapi.Message{}, errors.New("upload rejected")
		}
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func newBot(t *testing.T) (*botHandler, *fakeSender) {
	s := &fakeSender{}
	return &botHandler{api: s, p: testPipeline(t, models.ChartEcharts)}, s
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text, cmd, args string
	}{
		{"/start", "start", ""},
		{"/pie 지능범죄 경기", "pie", "지능범죄 경기"},
		{"/Bar@crime_bot  지능범죄 ", "bar", "지능범죄"},
		{"hello", "", "hello"},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.text)
		assert.Equal(t, tt.cmd, cmd, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}
}

func TestParseFilterArgs(t *testing.T) {
	h, _ := newBot(t)

	assert.Equal(t, models.Filter{Category: "지능범죄", Unit: "경기"}, h.parseFilterArgs("지능범죄 경기"))
	assert.Equal(t, models.Filter{Category: "지능범죄", Unit: models.AllUnits}, h.parseFilterArgs("지능범죄"))
	assert.Equal(t, models.Filter{Category: "지능범죄", Unit: models.AllUnits}, h.parseFilterArgs(""))
	assert.Equal(t, models.Filter{Category: "지능범죄", Unit: models.AllUnits}, h.parseFilterArgs("지능범죄 전체"))
	// 전북 has no regions in the table, so it stays part of the category.
	assert.Equal(t, models.Filter{Category: "지능범죄 전북", Unit: models.AllUnits}, h.parseFilterArgs("지능범죄 전북"))
}

func TestHandleStartAndLists(t *testing.T) {
	h, s := newBot(t)
	h.handleText(7, "/start")
	h.handleText(7, "/categories")
	h.handleText(7, "/units")
	h.handleText(7, "/unknown")

	texts := s.texts()
	require.Len(t, texts, 4)
	assert.Equal(t, welcomeText, texts[0])
	assert.Equal(t, "범죄 대분류:\n지능범죄\n강력범죄", texts[1])
	assert.Equal(t, "시/도:\n전체\n서울\n부산\n경기\n강원\n제주", texts[2])
	assert.Contains(t, texts[3], "/help")
}

func TestHandlePieSendsChartAndOtherDetail(t *testing.T) {
	h, s := newBot(t)
	h.handleText(7, "/pie 지능범죄")

	require.Len(t, s.sent, 2)
	var caption string
	var upload interface{}
	switch m := s.sent[0].(type) {
	case tgbotapi.PhotoConfig:
		caption, upload = m.Caption, m.File
	case tgbotapi.DocumentConfig:
		caption, upload = m.Caption, m.File
	default:
		t.Fatalf("expected an upload, got %T", m)
	}
	assert.Equal(t, "지능범죄 도별 발생 비율", caption)
	file, ok := upload.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "\x89PNG", string(file.Bytes[:4]))
	assert.Equal(t, chartFileName("pie", models.Filter{Category: "지능범죄", Unit: models.AllUnits}), file.Name)

	detail, ok := s.sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ModeHTML, detail.ParseMode)
	assert.Contains(t, detail.Text, "<pre>")
	assert.Contains(t, detail.Text, "강원")
}

func TestHandleBarSingleGroup(t *testing.T) {
	h, s := newBot(t)
	h.handleText(7, "/bar 강력범죄")
	assert.Equal(t, []string{"살인: 1건"}, s.texts())
	assert.Len(t, s.sent, 1)
}

func TestHandleChartErrors(t *testing.T) {
	h, s := newBot(t)
	h.handleText(7, "/bar 방화")
	h.handleText(7, "/pie 지능범죄 전체 제주")

	texts := s.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "방화")
	assert.Contains(t, texts[0], "/categories")
	// "지능범죄 전체" is not a category of the table.
	assert.Contains(t, texts[1], "지능범죄 전체")
}

func TestHandleAnomaliesInsufficientData(t *testing.T) {
	h, s := newBot(t)
	h.handleText(7, "/anomalies 지능범죄 경기")
	texts := s.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], models.ErrInsufficientData.Error())
}

func TestSendChartFallsBackToDocument(t *testing.T) {
	h, s := newBot(t)
	h.sendChart(7, make([]byte, maxPhotoSize+1), "big.png", "caption")
	require.Len(t, s.sent, 1)
	doc, ok := s.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "caption", doc.Caption)

	s.fail = true
	h.sendChart(7, []byte("png"), "small.png", "caption")
	require.Len(t, s.sent, 3)
	_, ok = s.sent[1].(tgbotapi.PhotoConfig)
	assert.True(t, ok)
	assert.Contains(t, s.texts()[0], "upload rejected")
}
