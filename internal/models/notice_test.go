package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoticeEventType_NameToID(t *testing.T) {
	tp := NoticeEventType{Name: "Notificação Preliminar"}
	assert.Equal(t, "notificacao_preliminar", tp.NameToID())
}

func TestNoticeEvent_CSSClassName(t *testing.T) {
	tp := NoticeEventType{Name: "Auto de Infração"}
	e := NoticeEvent{TypeID: tp.ID}
	assert.Equal(t, "notice_deadline_auto_de_infracao_color", e.CSSClassName(&tp))
}

func TestNoticeEvent_IsFrozen(t *testing.T) {
	e := NoticeEvent{}
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, e.IsFrozen(nil))
	assert.False(t, e.IsFrozen([]NoticeAppeal{{EndDate: &end}}))
	assert.True(t, e.IsFrozen([]NoticeAppeal{{EndDate: &end}, {EndDate: nil}}))
}

func TestNoticeAppeal_IsOpen(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, (&NoticeAppeal{}).IsOpen())
	assert.False(t, (&NoticeAppeal{EndDate: &end}).IsOpen())
}

func TestNoticeCSSName(t *testing.T) {
	types := map[int64]*NoticeEventType{
		1: {ID: 1, Name: "Vistoria", ShowStart: true},
		2: {ID: 2, Name: "Notificação", ShowStart: true},
		3: {ID: 3, Name: "Interno", ShowStart: false},
	}
	events := []NoticeEvent{
		{TypeID: 1},
		{TypeID: 3},
		{TypeID: 2},
		{TypeID: 1}, // duplicate type contributes once
	}
	assert.Equal(t, "vistoria, notificacao", NoticeCSSName(events, types))
}

func TestNoticeCSSName_Empty(t *testing.T) {
	assert.Equal(t, "", NoticeCSSName(nil, map[int64]*NoticeEventType{}))
}

func TestProperty_NameString(t *testing.T) {
	p := Property{
		Code:         "123456",
		Street:       "R. das Flores",
		Number:       "100",
		Complement:   "Casa 2",
		Neighborhood: "Centro",
	}
	assert.Equal(t, "123456 - R. das Flores, n100, Casa 2 - Centro", p.NameString())

	minimal := Property{Code: "000001"}
	assert.Equal(t, "000001", minimal.NameString())
}

func TestProperty_HasPostalCode(t *testing.T) {
	assert.True(t, (&Property{PostalCode: "88301000"}).HasPostalCode())
	assert.False(t, (&Property{PostalCode: "88301"}).HasPostalCode())
	assert.False(t, (&Property{}).HasPostalCode())
}
