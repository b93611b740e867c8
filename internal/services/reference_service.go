package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
)

// ReferenceService serves the administrator-maintained event type tables and
// the stylesheet derived from their colors.
type ReferenceService interface {
	NoticeEventTypes(ctx context.Context) ([]models.NoticeEventType, error)
	SurveyEventTypes(ctx context.Context) ([]models.SurveyEventType, error)
	ReportEventTypes(ctx context.Context) ([]models.ReportEventType, error)
	Stylesheet(ctx context.Context) (string, error)
}

type referenceService struct {
	repo repository.EventTypeRepository
}

// NewReferenceService creates a new instance of ReferenceService.
func NewReferenceService(repo repository.EventTypeRepository) ReferenceService {
	return &referenceService{repo: repo}
}

func (s *referenceService) NoticeEventTypes(ctx context.Context) ([]models.NoticeEventType, error) {
	return s.repo.ListNoticeEventTypes(ctx)
}

func (s *referenceService) SurveyEventTypes(ctx context.Context) ([]models.SurveyEventType, error) {
	return s.repo.ListSurveyEventTypes(ctx)
}

func (s *referenceService) ReportEventTypes(ctx context.Context) ([]models.ReportEventType, error) {
	return s.repo.ListReportEventTypes(ctx)
}

// Stylesheet builds the color classes for every event type. Type colors live
// in the database, so the stylesheet is generated rather than shipped.
func (s *referenceService) Stylesheet(ctx context.Context) (string, error) {
	var b strings.Builder

	noticeTypes, err := s.repo.ListNoticeEventTypes(ctx)
	if err != nil {
		return "", err
	}
	for i := range noticeTypes {
		writeColorRule(&b, "notice_deadline_"+noticeTypes[i].NameToID()+"_color", noticeTypes[i].CSSColor)
	}

	surveyTypes, err := s.repo.ListSurveyEventTypes(ctx)
	if err != nil {
		return "", err
	}
	for i := range surveyTypes {
		writeColorRule(&b, "survey_"+surveyTypes[i].NameToID()+"_color", surveyTypes[i].CSSColor)
	}

	reportTypes, err := s.repo.ListReportEventTypes(ctx)
	if err != nil {
		return "", err
	}
	for i := range reportTypes {
		writeColorRule(&b, "report_"+reportTypes[i].NameToID()+"_color", reportTypes[i].CSSColor)
	}

	return b.String(), nil
}

func writeColorRule(b *strings.Builder, class, color string) {
	if color == "" {
		return
	}
	fmt.Fprintf(b, ".%s { background-color: %s; }\n", class, color)
}
