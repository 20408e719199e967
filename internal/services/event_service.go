package services

import (
	"gorm.io/gorm"

	apperrors "registra/internal/errors"
	"registra/internal/logger"
	"registra/internal/models"
	"registra/internal/pagination"
)

// eventService appends workflow audit events.
type eventService struct {
	db *gorm.DB
}

// NewEventService creates a new EventRecorder.
func NewEventService(db *gorm.DB) EventRecorder {
	return &eventService{db: db}
}

// Record appends one workflow event. It is called after the transition
// transaction has committed, so a write failure here is logged rather than
// propagated; the transition itself already happened.
func (s *eventService) Record(declarationID, eventType, actorID, note string) {
	event := &models.WorkflowEvent{
		DeclarationID: declarationID,
		EventType:     eventType,
		ActorID:       actorID,
		Note:          note,
	}

	if err := s.db.Create(event).Error; err != nil {
		logger.Get().Errorw("failed to append workflow event",
			"error", err,
			"declaration_id", declarationID,
			"event_type", eventType,
			"actor_id", actorID,
		)
	}
}

// ListEvents returns a declaration's audit trail, newest first.
func (s *eventService) ListEvents(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.WorkflowEvent], error) {
	page.Defaults()

	base := s.db.Model(&models.WorkflowEvent{}).Where("declaration_id = ?", declarationID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var events []models.WorkflowEvent
	if err := base.Order("created_at DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(events, page.Page, page.PageSize, totalItems)
	return &result, nil
}
