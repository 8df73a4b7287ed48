package gormstorage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/promotion/posecore/pkg/core"
)

// Models lists every table migrated by the backend.
var Models = []any{
	&ReferenceModel{},
	&SessionModel{},
}

// ReferenceModel stores one encoded ideal sequence per sport/action.
type ReferenceModel struct {
	ID        uint      `gorm:"primarykey"`
	Sport     string    `gorm:"size:64;not null;uniqueIndex:idx_reference_key"`
	Action    string    `gorm:"size:64;not null;uniqueIndex:idx_reference_key"`
	Blob      []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (*ReferenceModel) TableName() string {
	return "ideal_references"
}

// SessionModel stores the summary of one completed recording session.
type SessionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sport       string    `gorm:"size:64;index:idx_session_key"`
	Action      string    `gorm:"size:64;index:idx_session_key"`
	Frames      int
	Dropped     int
	Label       string `gorm:"size:64"`
	Confidence  float64
	Quality     float64
	MeanError   float64
	Errors      datatypes.JSON
	WristPath   string    `gorm:"type:text"`
	Failure     string    `gorm:"type:text"`
	CompletedAt time.Time `gorm:"index"`
}

func (*SessionModel) TableName() string {
	return "sessions"
}

func referenceToModel(r *core.Reference) ReferenceModel {
	return ReferenceModel{
		ID:     r.ID,
		Sport:  r.Sport,
		Action: r.Action,
		Blob:   r.Blob,
	}
}

func referenceFromModel(m ReferenceModel) core.Reference {
	return core.Reference{
		ID:        m.ID,
		Sport:     m.Sport,
		Action:    m.Action,
		Blob:      m.Blob,
		UpdatedAt: m.UpdatedAt,
	}
}

func sessionToModel(r *core.SessionRecord) (SessionModel, error) {
	errs := r.Errors
	if errs == nil {
		errs = []float64{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return SessionModel{}, err
	}
	return SessionModel{
		ID:          r.ID,
		Sport:       r.Sport,
		Action:      r.Action,
		Frames:      r.Frames,
		Dropped:     r.Dropped,
		Label:       r.Label,
		Confidence:  r.Confidence,
		Quality:     r.Quality,
		MeanError:   r.MeanError,
		Errors:      datatypes.JSON(raw),
		WristPath:   r.WristPath,
		Failure:     r.Failure,
		CompletedAt: r.CompletedAt,
	}, nil
}

func sessionFromModel(m SessionModel) (core.SessionRecord, error) {
	var errs []float64
	if len(m.Errors) > 0 {
		if err := json.Unmarshal(m.Errors, &errs); err != nil {
			return core.SessionRecord{}, err
		}
	}
	return core.SessionRecord{
		ID:          m.ID,
		Sport:       m.Sport,
		Action:      m.Action,
		Frames:      m.Frames,
		Dropped:     m.Dropped,
		Label:       m.Label,
		Confidence:  m.Confidence,
		Quality:     m.Quality,
		MeanError:   m.MeanError,
		Errors:      errs,
		WristPath:   m.WristPath,
		Failure:     m.Failure,
		CompletedAt: m.CompletedAt,
	}, nil
}
