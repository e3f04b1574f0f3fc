package storage

import (
	"encoding/json"

	"tether/internal/domain"
	"tether/internal/logging"
)

// sessionModelToDomain converts a SessionModel (GORM) to domain.Session
func sessionModelToDomain(m SessionModel) domain.Session {
	context := make(map[string]any)
	if m.Context != "" {
		if err := json.Unmarshal([]byte(m.Context), &context); err != nil {
			// A corrupt blob loses the context, never the session.
			logging.Logger.Error("failed to decode session context", "session", m.ID, "error", err)
			context = make(map[string]any)
		}
	}
	return domain.Session{
		Context:     context,
		CreatedAt:   m.CreatedAt,
		ID:          m.ID,
		ProjectPath: m.ProjectPath,
		Status:      domain.SessionStatus(m.Status),
		ThreadID:    m.ThreadID,
		UpdatedAt:   m.UpdatedAt,
	}
}

// domainToSessionModel converts a domain.Session to SessionModel (GORM)
func domainToSessionModel(s domain.Session) (SessionModel, error) {
	context := s.Context
	if context == nil {
		context = make(map[string]any)
	}
	blob, err := json.Marshal(context)
	if err != nil {
		return SessionModel{}, err
	}
	return SessionModel{
		Context:     string(blob),
		CreatedAt:   s.CreatedAt,
		ID:          s.ID,
		ProjectPath: s.ProjectPath,
		Status:      string(s.Status),
		ThreadID:    s.ThreadID,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

// mappingModelToDomain converts a ThreadMappingModel to domain.ThreadMapping
func mappingModelToDomain(m ThreadMappingModel) domain.ThreadMapping {
	return domain.ThreadMapping{
		CreatedAt:   m.CreatedAt,
		ProjectPath: m.ProjectPath,
		ThreadID:    m.ThreadID,
		UpdatedAt:   m.UpdatedAt,
	}
}
